package middleware

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSubmissionID(t *testing.T) {
	assert.NoError(t, ValidateSubmissionID(strings.Repeat("ab", 64)))
	assert.NoError(t, ValidateSubmissionID("deadbeefdeadbeefdeadbeefdeadbeef"))

	assert.Error(t, ValidateSubmissionID(""))
	assert.Error(t, ValidateSubmissionID("short"))
	assert.Error(t, ValidateSubmissionID(strings.Repeat("ZZ", 32)))
	assert.Error(t, ValidateSubmissionID("../../etc/passwd"))
}

func TestValidateTenantID(t *testing.T) {
	assert.NoError(t, ValidateTenantID("acme"))
	assert.NoError(t, ValidateTenantID("team-42.internal"))

	assert.Error(t, ValidateTenantID(""))
	assert.Error(t, ValidateTenantID("-leading-dash"))
	assert.Error(t, ValidateTenantID("has space"))
	assert.Error(t, ValidateTenantID(strings.Repeat("a", 65)))
}

func TestValidateArchiveFilename(t *testing.T) {
	assert.NoError(t, ValidateArchiveFilename("code.zip"))
	assert.NoError(t, ValidateArchiveFilename("Project.ZIP"))

	assert.Error(t, ValidateArchiveFilename(""))
	assert.Error(t, ValidateArchiveFilename("code.tar.gz"))
	assert.Error(t, ValidateArchiveFilename("../evil.zip"))
	assert.Error(t, ValidateArchiveFilename("x;rm -rf.zip"))
}

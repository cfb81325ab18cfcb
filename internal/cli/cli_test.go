package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/fulfillment/internal/auth"
	"github.com/Additional-Code/fulfillment/internal/config"
	"github.com/Additional-Code/fulfillment/internal/entity"
)

func TestTokenIssuePrintsParseableToken(t *testing.T) {
	t.Setenv("AUTH_SECRET", "cli-test-secret")

	var out bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetArgs([]string{"token", "issue", "--subject", "budi", "--department", "Logistics"})
	require.NoError(t, root.ExecuteContext(context.Background()))

	cfg, err := config.New()
	require.NoError(t, err)
	identity, err := auth.NewTokenManager(cfg).Parse(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "budi", identity.Subject)
	assert.Equal(t, entity.DepartmentLogistics, identity.Department)
}

func TestTokenIssueRejectsUnknownDepartment(t *testing.T) {
	root := NewRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"token", "issue", "--subject", "budi", "--department", "marketing"})
	assert.Error(t, root.ExecuteContext(context.Background()))
}

package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/bissquit/healthboard/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
	})

	err := Execute(context.Background())
	return out.String(), err
}

func TestExecute_UnknownCommand(t *testing.T) {
	_, err := execute(t, "", "nonexistent-command")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestExecute_Version(t *testing.T) {
	out, err := execute(t, "", "version")

	require.NoError(t, err)
	assert.Equal(t, version.String()+"\n", out)
}

func TestMigrate_RejectsUnknownDirection(t *testing.T) {
	_, err := execute(t, "", "migrate", "sideways")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid argument")
}

func TestMigrate_InvalidConfig(t *testing.T) {
	t.Setenv("HEALTHBOARD_DATABASE__URL", "")

	_, err := execute(t, "", "migrate", "up")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading config")
}

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name    string
		stdin   string
		wantErr string
	}{
		{name: "line with newline", stdin: "correct-horse\n"},
		{name: "no trailing newline", stdin: "correct-horse"},
		{name: "crlf", stdin: "correct-horse\r\n"},
		{name: "empty", stdin: "\n", wantErr: "must not be empty"},
		{name: "no input", stdin: "", wantErr: "reading password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.stdin, "hash-password", "--cost", "4")
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}

			require.NoError(t, err)
			hash := strings.TrimSpace(out)
			assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("correct-horse")))
		})
	}
}

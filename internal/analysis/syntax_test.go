package analysis

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckSyntax(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		language string
		wantErr  bool
	}{
		{
			name:     "valid go",
			code:     "package main\n\nfunc main() {}\n",
			language: "go",
			wantErr:  false,
		},
		{
			name:     "invalid go",
			code:     "package main\n\nfunc main() {\n",
			language: "go",
			wantErr:  true,
		},
		{
			name:     "valid json",
			code:     `{"a": 1}`,
			language: "json",
			wantErr:  false,
		},
		{
			name:     "invalid json",
			code:     `{"a": }`,
			language: "json",
			wantErr:  true,
		},
		{
			name:     "invalid yaml",
			code:     "a: [1, 2\n",
			language: "yaml",
			wantErr:  true,
		},
		{
			name:     "unvalidated language accepted",
			code:     "def broken(:\n",
			language: "python",
			wantErr:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckSyntax(tt.code, tt.language)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestHasSyntaxValidator(t *testing.T) {
	require.True(t, HasSyntaxValidator("go"))
	require.True(t, HasSyntaxValidator("JSON"))
	require.False(t, HasSyntaxValidator("python"))
}

func TestDefaultFilePath(t *testing.T) {
	require.Equal(t, "submission.py", DefaultFilePath("python"))
	require.Equal(t, "submission.tf", DefaultFilePath("terraform"))
	require.Equal(t, "submission.go", DefaultFilePath("go"))
	require.Equal(t, "submission.txt", DefaultFilePath("cobol"))
}

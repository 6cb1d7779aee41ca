package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the CLI with the given args, returning stdout and the
// command error.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func golden(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestRun_GroupedSumText(t *testing.T) {
	out, err := execute(t, "run", "testdata/grouped_sum.yaml")
	require.NoError(t, err)
	golden(t).Assert(t, "run_grouped_sum_text", []byte(out))
}

func TestRun_GroupedSumJSON(t *testing.T) {
	out, err := execute(t, "run", "--format", "json", "testdata/grouped_sum.yaml")
	require.NoError(t, err)
	golden(t).Assert(t, "run_grouped_sum_json", []byte(out))
}

func TestRun_CUEDocumentMatchesYAML(t *testing.T) {
	fromYAML, err := execute(t, "run", "--format", "json", "testdata/grouped_sum.yaml")
	require.NoError(t, err)
	fromCUE, err := execute(t, "run", "--format", "json", "testdata/grouped_sum.cue")
	require.NoError(t, err)
	assert.Equal(t, fromYAML, fromCUE)
}

func TestRun_ListOpsText(t *testing.T) {
	out, err := execute(t, "run", "testdata/list_ops.yaml")
	require.NoError(t, err)
	golden(t).Assert(t, "run_list_ops_text", []byte(out))
}

func TestRun_CacheFlagSameOutput(t *testing.T) {
	plain, err := execute(t, "run", "--format", "json", "testdata/grouped_sum.yaml")
	require.NoError(t, err)
	cached, err := execute(t, "run", "--format", "json", "--cache", "testdata/grouped_sum.yaml")
	require.NoError(t, err)
	assert.Equal(t, plain, cached)
}

func TestRun_UnknownFieldIsCommandError(t *testing.T) {
	out, err := execute(t, "run", "--format", "json", "testdata/bad_field.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, `"code":"`+ErrCodeField+`"`)
}

func TestRun_EvalErrorIsFailure(t *testing.T) {
	out, err := execute(t, "run", "--format", "json", "testdata/sum_nonnumeric.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, `"code":"`+ErrCodeEval+`"`)
}

func TestRun_MissingDocument(t *testing.T) {
	_, err := execute(t, "run", "testdata/nope.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestFields_CSV(t *testing.T) {
	out, err := execute(t, "fields", "--csv", "testdata/sample.csv")
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\nthree\n", out)
}

func TestFields_JSON(t *testing.T) {
	out, err := execute(t, "fields", "--format", "json", "--csv", "testdata/sample.csv")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok","data":{"fields":["one","two","three"]}}`, out)
}

func TestFields_FlagValidation(t *testing.T) {
	_, err := execute(t, "fields")
	assert.Error(t, err)

	_, err = execute(t, "fields", "--db", "testdata/nope.db")
	assert.Error(t, err)

	_, err = execute(t, "fields", "--csv", "a.csv", "--db", "b.db", "--table", "t")
	assert.Error(t, err)
}

func TestValidate_Text(t *testing.T) {
	out, err := execute(t, "validate", "testdata/grouped_sum.yaml")
	require.NoError(t, err)
	assert.Equal(t, "valid\n", out)
}

func TestValidate_JSON(t *testing.T) {
	out, err := execute(t, "validate", "--format", "json", "testdata/grouped_sum.yaml")
	require.NoError(t, err)
	golden(t).Assert(t, "validate_json", []byte(out))
}

func TestValidate_UnknownFieldSurfaces(t *testing.T) {
	out, err := execute(t, "validate", "--format", "json", "testdata/bad_field.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, `"code":"`+ErrCodeField+`"`)
}

func TestValidate_DataErrorsDoNotSurface(t *testing.T) {
	// Summing a non-numeric column is a data-dependent failure, invisible
	// until execution.
	out, err := execute(t, "validate", "testdata/sum_nonnumeric.yaml")
	require.NoError(t, err)
	assert.Equal(t, "valid\n", out)
}

func TestRoot_RejectsInvalidFormat(t *testing.T) {
	_, err := execute(t, "--format", "xml", "fields", "--csv", "testdata/sample.csv")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "invalid format"))
}

package template

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	vars := map[string]string{
		"test_case":   "gpt_static_inference_tp1_pp1_583m_logitsmatch",
		"environment": "dev",
		"platforms":   "dgx_h100",
		"n_repeat":    "5",
	}

	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "name template",
			text: "{test_case}_{environment}_{platforms}",
			want: "gpt_static_inference_tp1_pp1_583m_logitsmatch_dev_dgx_h100",
		},
		{
			name: "shell expansions are kept",
			text: `echo ${RECORD_CHECKPOINTS} ${ARGUMENTS[@]} $HOME "N_REPEAT={n_repeat}"`,
			want: `echo ${RECORD_CHECKPOINTS} ${ARGUMENTS[@]} $HOME "N_REPEAT=5"`,
		},
		{
			name: "escaped braces",
			text: "{{environment}} is {environment}",
			want: "{environment} is dev",
		},
		{
			name: "non identifier braces",
			text: "cp file{1,2} . && awk '{print $1}' {} {Upper}",
			want: "cp file{1,2} . && awk '{print $1}' {} {Upper}",
		},
		{
			name: "unterminated brace",
			text: "echo {environment} {oops",
			want: "echo dev {oops",
		},
		{
			name: "unterminated shell expansion",
			text: "echo ${HOME",
			want: "echo ${HOME",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := Render(test.text, vars)

			require.NoError(t, err)
			assert.Equal(t, test.want, got)
		})
	}
}

func Test_GivenUnknownPlaceholders_WhenRendered_ThenAllAreReported(t *testing.T) {
	// When
	_, err := Render("{model}/{test_case}/{model}/{assets_dir}", map[string]string{"test_case": "a"})

	// Then
	var unresolved *UnresolvedError
	require.True(t, errors.As(err, &unresolved))
	assert.Equal(t, []string{"assets_dir", "model"}, unresolved.Names)
	assert.EqualError(t, err, "unresolved placeholders: assets_dir, model")
}

func TestPlaceholders(t *testing.T) {
	text := `"GOLDEN_VALUES_PATH=./{model}/{test_case}/golden_values_{environment}_{platforms}.json" ${ARGUMENTS[@]} {model}`

	assert.Equal(t, []string{"model", "test_case", "environment", "platforms"}, Placeholders(text))
	assert.Empty(t, Placeholders("echo ${HOME} {{literal}}"))
}

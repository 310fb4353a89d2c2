package envcheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const setupScript = `unset https_proxy
echo "machine gitlab-master.nvidia.com login okoenig password $RO_API_TOKEN" | tee -a /root/.netrc

cd /opt
rm -rf /opt/megatron-lm; mkdir megatron-lm; cd megatron-lm
git init
git remote add origin $MCORE_REPO
git fetch origin $MCORE_MR_COMMIT
git checkout $MCORE_MR_COMMIT
git rev-parse HEAD

cd /opt
git fetch origin ${MCORE_BACKWARDS_COMMIT}
git checkout $MCORE_BACKWARDS_COMMIT
`

const runScript = `ls
cd /opt/megatron-lm

ARGUMENTS=(
    "N_REPEAT=1"
    "RECORD_CHECKPOINTS=${RECORD_CHECKPOINTS}"
)

bash ./tests/functional_tests/shell_test_utils/run_ci_test.sh ${ARGUMENTS[@]}`

func TestRequired(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   []string
	}{
		{
			name:   "setup script",
			script: setupScript,
			want:   []string{"MCORE_BACKWARDS_COMMIT", "MCORE_MR_COMMIT", "MCORE_REPO", "RO_API_TOKEN"},
		},
		{
			name:   "run script",
			script: runScript,
			want:   []string{"RECORD_CHECKPOINTS"},
		},
		{
			name: "assignments and loops",
			script: `export OUT_DIR=/tmp/out
  RETRIES=3; COUNT+=1
for CASE in a b; do echo $CASE $OUT_DIR $RETRIES; done
read -r LINE; echo $LINE $COUNT $1 $? $lower
echo $TOKEN`,
			want: []string{"TOKEN"},
		},
		{
			name:   "no variables",
			script: "echo hello",
			want:   nil,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, Required(test.script))
		})
	}
}

func TestMissing(t *testing.T) {
	env := map[string]string{
		"RO_API_TOKEN": "token",
		"MCORE_REPO":   "https://example.com/megatron-lm.git",
	}

	missing := Missing(setupScript, func(key string) string { return env[key] })

	assert.Equal(t, []string{"MCORE_BACKWARDS_COMMIT", "MCORE_MR_COMMIT"}, missing)
}

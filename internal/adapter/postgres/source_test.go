package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phrasematch/config"
)

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.PostgresConfig
		want string
	}{
		{
			name: "defaults",
			cfg:  config.DefaultConfig().Postgres,
			want: `SELECT "code", "phrase", "kind" FROM "phrases" ORDER BY "id"`,
		},
		{
			name: "schema qualified without kind or order",
			cfg:  config.PostgresConfig{Table: "terminology.icd10", CodeColumn: "icd_code", PhraseColumn: "label"},
			want: `SELECT "icd_code", "label", NULL FROM "terminology"."icd10"`,
		},
		{
			name: "hostile identifiers stay quoted",
			cfg:  config.PostgresConfig{Table: `x"; drop table y; --`, CodeColumn: "c", PhraseColumn: "p"},
			want: `SELECT "c", "p", NULL FROM "x""; drop table y; --"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildQuery(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildQuery_MissingColumns(t *testing.T) {
	_, err := buildQuery(config.PostgresConfig{Table: "phrases"})
	assert.Error(t, err)
}

func TestOpen_RequiresDSN(t *testing.T) {
	_, err := Open(config.PostgresConfig{})
	assert.Error(t, err)
}

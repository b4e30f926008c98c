package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchemaStatus_CheckVersion(t *testing.T) {
	cases := []struct {
		name     string
		status   SchemaStatus
		required uint
		want     error
	}{
		{name: "atualizado", status: SchemaStatus{Version: 3}, required: 3},
		{name: "à frente", status: SchemaStatus{Version: 4}, required: 3},
		{name: "sem migrações", status: SchemaStatus{}, required: 3, want: ErrSchemaOutdated},
		{name: "desatualizado", status: SchemaStatus{Version: 2}, required: 3, want: ErrSchemaOutdated},
		{name: "dirty", status: SchemaStatus{Version: 3, Dirty: true}, required: 3, want: ErrSchemaDirty},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.status.CheckVersion(tc.required)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

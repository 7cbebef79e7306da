package deps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apiviz/apiviz-go/internal/models"
)

func TestGroupMergesByModuleAndType(t *testing.T) {
	d := &models.ApiDependencies{
		Services: []models.DependencyRef{
			{Name: "getUser", Module: "@/services/user", Type: "services"},
			{Name: "updateUser", Module: "@/services/user", Type: "services"},
			{Name: "getUser", Module: "@/services/user", Type: "services"},
		},
		Database: []models.DependencyRef{
			{Name: "db", Module: "@/db/client", Type: "database"},
		},
	}

	groups := Group(d)
	require.Len(t, groups, 2)

	assert.Equal(t, "database", groups[0].Type)
	assert.Equal(t, "@/db/client", groups[0].Module)
	assert.Equal(t, "db/client", groups[0].ModuleLabel)
	assert.Equal(t, 1, groups[0].Count)

	assert.Equal(t, "services", groups[1].Type)
	assert.Equal(t, []string{"getUser", "updateUser"}, groups[1].Items)
	assert.Equal(t, 2, groups[1].Count)
}

func TestGroupNilInput(t *testing.T) {
	assert.Empty(t, Group(nil))
}

func TestShortLabel(t *testing.T) {
	cases := []struct {
		module string
		want   string
	}{
		{"@/services/user", "services/user"},
		{"~/lib/utils", "lib/utils"},
		{"drizzle-orm/pg-core", "pg-core"},
		{"@prisma/client", "@prisma/client"},
		{"axios", "axios"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ShortLabel(tc.module), tc.module)
	}
}

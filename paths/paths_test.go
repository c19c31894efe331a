package paths

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollectionName(t *testing.T) {
	tests := []struct {
		command string
		want    string
	}{
		{"app/models/Order", "orders"},
		{"app/models/Items", "items"},
		{"Order", "orders"},
		{"status", "status"},
		{"USER", "users"},
		{"", ""},
		{"a/b/", ""},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			assert.Equal(t, tt.want, CollectionName(tt.command))
			// Pure: a second call gives the same answer.
			assert.Equal(t, CollectionName(tt.command), CollectionName(tt.command))
		})
	}
}

func TestModelName(t *testing.T) {
	assert.Equal(t, "Order", ModelName("order"))
	assert.Equal(t, "Order", ModelName("shop/order"))
	assert.Equal(t, "OrderItem", ModelName("shop/orderItem"))
	assert.Equal(t, "Élan", ModelName("élan"))
	assert.Equal(t, "", ModelName(""))
}

func TestModelPath(t *testing.T) {
	root := t.TempDir()
	l := DefaultLayout(root)

	assert.Equal(t, filepath.Join(root, "app", "schemas"), l.ModelPath("order"))
	assert.Equal(t, filepath.Join(root, "app", "schemas", "shop", "v2"), l.ModelPath("shop/v2/order"))
	assert.Equal(t, filepath.Join(root, "database", "migrations", "shop"), l.MigrationModelPath("shop/order"))
	assert.Equal(t, filepath.Join(root, "app", "schemas", "shop", "Order.yaml"), l.SchemaFile("shop/order"))
	assert.Equal(t, filepath.Join(root, "database", "migrations", "Order.yaml"), l.MigrationFile("order"))
}

func TestLayoutAbsoluteDirs(t *testing.T) {
	dir := t.TempDir()
	l := Layout{Root: "/ignored", SchemaDir: dir, MigrationDir: filepath.Join(dir, "m")}
	assert.Equal(t, dir, l.SchemaRoot())
	assert.Equal(t, filepath.Join(dir, "m"), l.MigrationRoot())
}

func TestStripSchemaPrefix(t *testing.T) {
	assert.Equal(t, "Order", StripSchemaPrefix("--schema=Order"))
	assert.Equal(t, "Order", StripSchemaPrefix("Order"))
}

func TestNameFromFile(t *testing.T) {
	assert.Equal(t, "Order", NameFromFile("/x/app/schemas/Order.yaml"))
	assert.Equal(t, "Order", NameFromFile("Order.yml"))
	assert.Equal(t, "Order", NameFromFile("Order.JSON"))
	assert.Equal(t, "notes.txt", NameFromFile("/x/notes.txt"))
	assert.True(t, IsDefinitionFile("a/b.yaml"))
	assert.False(t, IsDefinitionFile("a/b.js"))
}

func TestCheckCommand(t *testing.T) {
	for _, ok := range []string{"order", "shop/order", "a/../order", "./shop/order", "/shop/order"} {
		assert.NoError(t, CheckCommand(ok), ok)
	}
	for _, bad := range []string{"../escaped", "../../../escaped", "shop/../../order", "..", "shop/.."} {
		err := CheckCommand(bad)
		assert.True(t, errors.Is(err, ErrEscapesRoot), bad)
	}
}

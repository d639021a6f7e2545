package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmercato/catalog-search/internal/catalog"
	"github.com/openmercato/catalog-search/pkg/errors"
)

func testArtifact(ids ...string) *catalog.Artifact {
	products := make([]catalog.Product, 0, len(ids))
	for _, id := range ids {
		products = append(products, catalog.Product{ID: id, Title: "Product " + id, Vendor: "Acme"})
	}
	return catalog.NewArtifact(products)
}

func TestPersistAndLoadRoundTrip(t *testing.T) {
	paths := PathsFor(filepath.Join(t.TempDir(), "index.json"))
	artifact := testArtifact("1", "2", "3")

	require.NoError(t, Persist(artifact, paths))

	loaded, err := Load(paths.Canonical)
	require.NoError(t, err)
	assert.Len(t, loaded.Products, 3)
	assert.Equal(t, 3, loaded.Metadata.TotalProducts)
	assert.Equal(t, []string{"Acme"}, loaded.Metadata.Vendors)

	// No temp file may survive a successful run.
	_, err = os.Stat(paths.Temp)
	assert.True(t, os.IsNotExist(err))
}

func TestPersistCreatesBackupAndRotates(t *testing.T) {
	paths := PathsFor(filepath.Join(t.TempDir(), "index.json"))

	require.NoError(t, Persist(testArtifact("1"), paths))
	require.NoError(t, Persist(testArtifact("1", "2"), paths))

	// Second run backed up the first artifact and rotated it to old.
	old, err := Load(paths.Old)
	require.NoError(t, err)
	assert.Len(t, old.Products, 1)

	require.NoError(t, Persist(testArtifact("1", "2", "3"), paths))
	old, err = Load(paths.Old)
	require.NoError(t, err)
	assert.Len(t, old.Products, 2)

	current, err := Load(paths.Canonical)
	require.NoError(t, err)
	assert.Len(t, current.Products, 3)
}

func TestPersistFailureBeforeRenameLeavesCanonicalUntouched(t *testing.T) {
	paths := PathsFor(filepath.Join(t.TempDir(), "index.json"))
	require.NoError(t, Persist(testArtifact("1", "2"), paths))

	before, err := os.ReadFile(paths.Canonical)
	require.NoError(t, err)

	// An empty collection fails structural validation at step 3, before the
	// rename; the canonical file must stay byte-identical.
	err = Persist(&catalog.Artifact{Products: []catalog.Product{}}, paths)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrPersistFailed)

	after, err := os.ReadFile(paths.Canonical)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	_, err = os.Stat(paths.Temp)
	assert.True(t, os.IsNotExist(err), "temp file must be cleaned up")
}

func TestPersistAfterRenameCanonicalIsNewContent(t *testing.T) {
	paths := PathsFor(filepath.Join(t.TempDir(), "index.json"))
	require.NoError(t, Persist(testArtifact("1"), paths))

	artifact := testArtifact("1", "2", "3", "4")
	require.NoError(t, Persist(artifact, paths))

	data, err := os.ReadFile(paths.Canonical)
	require.NoError(t, err)
	var reread catalog.Artifact
	require.NoError(t, json.Unmarshal(data, &reread), "canonical must never be truncated")
	assert.Len(t, reread.Products, 4)
}

func TestRestoreCanonicalFromBackupAfterCrash(t *testing.T) {
	paths := PathsFor(filepath.Join(t.TempDir(), "index.json"))
	require.NoError(t, Persist(testArtifact("1", "2"), paths))
	require.NoError(t, Persist(testArtifact("1", "2", "3"), paths))

	// Simulate a crash that left a backup but removed the canonical file.
	require.NoError(t, Persist(testArtifact("9"), paths)) // creates fresh backup
	backup, err := os.ReadFile(paths.Canonical)
	require.NoError(t, err)
	require.NoError(t, copyFile(paths.Canonical, paths.Backup))
	require.NoError(t, os.Remove(paths.Canonical))

	err = Persist(&catalog.Artifact{}, paths)
	require.Error(t, err)

	restored, readErr := os.ReadFile(paths.Canonical)
	require.NoError(t, readErr, "canonical must be restored from backup")
	assert.Equal(t, backup, restored)
}

func TestLoadBareArrayBackCompat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.json")
	products := []catalog.Product{
		{ID: "1", Title: "One"},
		{ID: "2", Title: "Two"},
	}
	data, err := json.Marshal(products)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, loaded.Products, 2)
	assert.Equal(t, 2, loaded.Metadata.TotalProducts)
	assert.Empty(t, loaded.Metadata.Vendors, "metadata is unknown for the legacy form")
	assert.Empty(t, loaded.Metadata.ProductTypes)
}

func TestLoadMissingAndCorrupt(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.ErrorIs(t, err, errors.ErrArtifactMissing)

	path := filepath.Join(t.TempDir(), "corrupt.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err = Load(path)
	assert.ErrorIs(t, err, errors.ErrArtifactCorrupt)
}

func TestValidate(t *testing.T) {
	assert.Error(t, Validate(nil))
	assert.Error(t, Validate(&catalog.Artifact{}))
	assert.Error(t, Validate(&catalog.Artifact{
		Products: []catalog.Product{{ID: "", Title: "x"}},
		Metadata: catalog.Metadata{TotalProducts: 1},
	}))
	assert.Error(t, Validate(&catalog.Artifact{
		Products: []catalog.Product{{ID: "1", Title: "x"}},
		Metadata: catalog.Metadata{TotalProducts: 7},
	}))
	assert.NoError(t, Validate(testArtifact("1", "2")))
}

package records

import (
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bundler/internal/errors"
	"git.home.luguber.info/inful/bundler/internal/vfs"
)

func TestReadFromWithNoPathYieldsEmptyStore(t *testing.T) {
	s := NewStore()
	s.Set("stale", "value")

	require.NoError(t, s.ReadFrom(vfs.NewMemFS(), ""))
	require.Equal(t, 0, s.Len())
}

func TestReadFromMissingFileYieldsEmptyStore(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.ReadFrom(vfs.NewMemFS(), "/data/.records.json"))
	require.Equal(t, 0, s.Len())
}

func TestReadFromMalformedContentFailsWithMarker(t *testing.T) {
	fsys := vfs.NewMemFS()
	require.NoError(t, fsys.WriteFile("/data/.records.json", []byte("{not json")))

	s := NewStore()
	s.Set("existing", "kept")

	err := s.ReadFrom(fsys, "/data/.records.json")
	require.Error(t, err)
	require.Contains(t, err.Error(), errors.RecordsParseMarker)

	// Existing in-memory records stay untouched on a parse failure.
	v, ok := s.Get("existing")
	require.True(t, ok)
	require.Equal(t, "kept", v)
}

func TestReadFromRoundTrips(t *testing.T) {
	fsys := vfs.NewMemFS()
	src := NewStore()
	src.Set("chunks", map[string]any{"main": float64(0)})
	require.NoError(t, src.WriteTo(fsys, "/data/.records.json"))

	dst := NewStore()
	require.NoError(t, dst.ReadFrom(fsys, "/data/.records.json"))
	v, ok := dst.Get("chunks")
	require.True(t, ok)
	require.Equal(t, map[string]any{"main": float64(0)}, v)
}

func TestWriteToWithNoPathTouchesNoFiles(t *testing.T) {
	fsys := vfs.NewMemFS()
	s := NewStore()
	require.NoError(t, s.WriteTo(fsys, ""))
	require.Empty(t, fsys.Paths())
}

func TestWriteToEmptyStoreWritesBareObject(t *testing.T) {
	fsys := vfs.NewMemFS()
	s := NewStore()
	require.NoError(t, s.WriteTo(fsys, "/out/.records.json"))

	data, err := fsys.ReadFile("/out/.records.json")
	require.NoError(t, err)
	require.Equal(t, "{}", string(data))
	require.True(t, fsys.HasDir("/out"), "parent directory must be created")
}

func TestSerializeUsesTwoSpaceIndent(t *testing.T) {
	s := NewStore()
	s.Set("main", map[string]any{"id": float64(1)})

	data, err := s.Serialize()
	require.NoError(t, err)
	require.Equal(t, "{\n  \"main\": {\n    \"id\": 1\n  }\n}", string(data))
}

func TestChildEntriesByNameAndIndex(t *testing.T) {
	s := NewStore()
	first := s.Child("manifest", 0)
	second := s.Child("manifest", 1)

	first.Set("id", 10)
	second.Set("id", 20)

	list, ok := s.Get("manifest")
	require.True(t, ok)
	entries := list.([]any)
	require.Len(t, entries, 2)
	require.Equal(t, map[string]any{"id": 10}, entries[0])
	require.Equal(t, map[string]any{"id": 20}, entries[1])
}

func TestChildReusesExistingEntry(t *testing.T) {
	s := NewStore()
	s.Child("manifest", 0).Set("id", 10)

	// A later spawn at the same (name, index) sees the prior content.
	again := s.Child("manifest", 0)
	v, ok := again.Get("id")
	require.True(t, ok)
	require.Equal(t, 10, v)
}

func TestChildSurvivesSerializeRoundTrip(t *testing.T) {
	fsys := vfs.NewMemFS()
	s := NewStore()
	s.Child("manifest", 0).Set("id", float64(10))
	require.NoError(t, s.WriteTo(fsys, "/out/.records.json"))

	reloaded := NewStore()
	require.NoError(t, reloaded.ReadFrom(fsys, "/out/.records.json"))
	v, ok := reloaded.Child("manifest", 0).Get("id")
	require.True(t, ok)
	require.Equal(t, float64(10), v)
}

func TestNormalizeName(t *testing.T) {
	require.Equal(t, "manifest", NormalizeName("/proj", "/proj/manifest"))
	require.Equal(t, "manifest", NormalizeName("", "manifest"))
	require.Equal(t, "a/b", NormalizeName("", "a\\b"))
}

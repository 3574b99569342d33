package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xRadioAc7iv/go-rmp/internal/hash"
	"github.com/0xRadioAc7iv/go-rmp/internal/record"
)

func newStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestNewCreatesRootDirectory(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "buckets")

	s, err := New(root)
	require.NoError(t, err)

	info, err := os.Stat(s.Root())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewRejectsFileAsRoot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	_, err := New(path)
	assert.Error(t, err)
}

func TestNewSweepsStaleTempFiles(t *testing.T) {
	root := t.TempDir()
	stale := filepath.Join(root, ".bucket-123.tmp")
	keep := filepath.Join(root, "1505")

	require.NoError(t, os.WriteFile(stale, []byte("[{"), 0644))
	require.NoError(t, os.WriteFile(keep, []byte("[]"), 0644))

	_, err := New(root)
	require.NoError(t, err)

	_, err = os.Stat(stale)
	assert.True(t, errors.Is(err, os.ErrNotExist), "stale temp file should be gone")
	_, err = os.Stat(keep)
	assert.NoError(t, err, "bucket files must survive the sweep")
}

func TestLoadMissingBucketIsEmpty(t *testing.T) {
	s := newStore(t)

	b, err := s.Load(hash.Sum("nobody@example.com"))
	require.NoError(t, err)
	assert.Empty(t, b)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newStore(t)
	h := hash.Sum("a@example.com")

	b := Bucket{record.New("a@example.com", record.Attributes{"name": "John", "phone": "0000000000"})}
	require.NoError(t, s.Save(h, b))

	data, err := os.ReadFile(s.Path(h))
	require.NoError(t, err)
	assert.JSONEq(t,
		`[{"key":"a@example.com","attributes":{"name":"John","phone":"0000000000"}}]`,
		string(data))

	loaded, err := s.Load(h)
	require.NoError(t, err)
	assert.Equal(t, b, loaded)
}

func TestPathIsHexOfHash(t *testing.T) {
	s := newStore(t)
	assert.Equal(t, filepath.Join(s.Root(), "1505"), s.Path(5381))
}

func TestSaveReplacesWholeBucket(t *testing.T) {
	s := newStore(t)
	h := uint32(1)

	require.NoError(t, s.Save(h, Bucket{record.New("a", nil), record.New("b", nil)}))
	require.NoError(t, s.Save(h, Bucket{record.New("c", nil)}))

	loaded, err := s.Load(h)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "c", loaded[0].Key)
}

func TestSaveEmptyBucketRemovesFile(t *testing.T) {
	s := newStore(t)
	h := uint32(2)

	require.NoError(t, s.Save(h, Bucket{record.New("a", nil)}))
	require.NoError(t, s.Save(h, Bucket{}))

	_, err := os.Stat(s.Path(h))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	// removing an already absent bucket is fine
	require.NoError(t, s.Save(h, nil))
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	s := newStore(t)

	for i := uint32(0); i < 10; i++ {
		require.NoError(t, s.Save(i, Bucket{record.New("k", nil)}))
	}

	matches, err := filepath.Glob(filepath.Join(s.Root(), tempPattern))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestLoadCorruptBucketIsIOError(t *testing.T) {
	s := newStore(t)
	h := uint32(3)

	require.NoError(t, os.WriteFile(s.Path(h), []byte(`[{"key":"a"`), 0644))

	_, err := s.Load(h)
	require.Error(t, err)

	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, "parse", ioErr.Op)
}

func TestLoadUnreadableBucketIsIOError(t *testing.T) {
	s := newStore(t)
	h := uint32(4)

	// a directory where the bucket file should be cannot be read as one
	require.NoError(t, os.Mkdir(s.Path(h), 0755))

	_, err := s.Load(h)

	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, "read", ioErr.Op)
}

func TestCollidingKeysShareABucket(t *testing.T) {
	s := newStore(t)
	require.Equal(t, hash.Sum("Ez@example.com"), hash.Sum("FY@example.com"))
	h := hash.Sum("Ez@example.com")

	b := Bucket{
		record.New("Ez@example.com", record.Attributes{"name": "Ez"}),
		record.New("FY@example.com", record.Attributes{"name": "FY"}),
	}
	require.NoError(t, s.Save(h, b))

	loaded, err := s.Load(h)
	require.NoError(t, err)

	i := loaded.Find("FY@example.com")
	require.Equal(t, 1, i)
	assert.Equal(t, "FY", loaded[i].Attributes["name"])
	assert.Equal(t, 0, loaded.Find("Ez@example.com"))
}

func TestBucketFindAndRemove(t *testing.T) {
	b := Bucket{record.New("a", nil), record.New("b", nil), record.New("c", nil)}

	assert.Equal(t, 1, b.Find("b"))
	assert.Equal(t, -1, b.Find("z"))

	b = b.Remove(1)
	require.Len(t, b, 2)
	assert.Equal(t, "a", b[0].Key)
	assert.Equal(t, "c", b[1].Key)
	assert.Equal(t, -1, b.Find("b"))
}

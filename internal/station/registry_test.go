package station

import (
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Visual-Illusions/NewU/internal/model"
)

// memStore is an in-memory Store for registry tests.
type memStore struct {
	mu      sync.Mutex
	records []Record
	saves   int
	loadErr error
	saveErr error
}

func (s *memStore) Load() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.records), s.loadErr
}

func (s *memStore) Save(records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.records = slices.Clone(records)
	return nil
}

func (s *memStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// countingRecorder counts recorder calls.
type countingRecorder struct {
	stations    atomic.Int64
	discoveries atomic.Int64
	saves       atomic.Int64
	failed      atomic.Int64
}

func (r *countingRecorder) SetStations(n int) { r.stations.Store(int64(n)) }
func (r *countingRecorder) IncDiscoveries()   { r.discoveries.Add(1) }
func (r *countingRecorder) ObserveSave(_ time.Duration, err error) {
	r.saves.Add(1)
	if err != nil {
		r.failed.Add(1)
	}
}

func names(snaps []Snapshot) []string {
	out := make([]string, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, s.Name)
	}
	return out
}

func TestRegistry_AddScenario(t *testing.T) {
	store := &memStore{}
	reg := NewRegistry(store)

	require.NoError(t, reg.Add(NewStation("A", pose(0, 0, 0))))

	err := reg.Add(NewStation("B", pose(10, 0, 0)))
	require.ErrorIs(t, err, ErrTooClose)

	require.NoError(t, reg.Add(NewStation("C", pose(100, 0, 0))))
	assert.Equal(t, 2, reg.Len())
	assert.Equal(t, 2, store.saveCount(), "rejected add must not save")

	reloaded := NewRegistry(store)
	require.NoError(t, reloaded.Load())
	require.Equal(t, []string{"A", "C"}, names(reloaded.Stations()))
	for i, snap := range reloaded.Stations() {
		orig := reg.Stations()[i]
		assert.Equal(t, orig.Placement.BlockX(), snap.Placement.BlockX())
		assert.Equal(t, orig.Placement.BlockY(), snap.Placement.BlockY())
		assert.Equal(t, orig.Placement.BlockZ(), snap.Placement.BlockZ())
	}
}

func TestRegistry_AddRejectsDuplicateName(t *testing.T) {
	reg := NewRegistry(&memStore{})
	require.NoError(t, reg.Add(NewStation("A", pose(0, 0, 0))))

	err := reg.Add(NewStation("A", pose(500, 0, 0)))
	require.ErrorIs(t, err, ErrNameTaken)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_SeparationIsPerWorldAndDimension(t *testing.T) {
	reg := NewRegistry(&memStore{})
	require.NoError(t, reg.Add(NewStation("overworld", pose(0, 0, 0))))

	nether := model.NewPose("world", model.DimensionNether, 0, 0, 0)
	require.NoError(t, reg.Add(NewStation("nether", nether)))

	other := model.NewPose("skyblock", model.DimensionNormal, 0, 0, 0)
	require.NoError(t, reg.Add(NewStation("sky", other)))

	assert.Equal(t, 3, reg.Len())
}

func TestRegistry_AddSaveFailureIsNotAnAddFailure(t *testing.T) {
	store := &memStore{saveErr: errors.New("disk full")}
	rec := &countingRecorder{}
	reg := NewRegistry(store, WithRecorder(rec))

	require.NoError(t, reg.Add(NewStation("A", pose(0, 0, 0))))
	assert.Equal(t, 1, reg.Len())
	assert.Equal(t, int64(1), rec.failed.Load())

	require.Error(t, reg.Save())
}

func TestRegistry_Remove(t *testing.T) {
	store := &memStore{}
	reg := NewRegistry(store)
	require.NoError(t, reg.Add(NewStation("A", pose(0, 0, 0))))
	require.NoError(t, reg.Add(NewStation("B", pose(100, 0, 0))))

	snap, err := reg.Remove("A")
	require.NoError(t, err)
	assert.Equal(t, "A", snap.Name)
	assert.Equal(t, []string{"B"}, names(reg.Stations()))

	_, err = reg.Remove("A")
	require.ErrorIs(t, err, ErrNotFound)

	reloaded := NewRegistry(store)
	require.NoError(t, reloaded.Load())
	assert.Equal(t, []string{"B"}, names(reloaded.Stations()))
}

func TestRegistry_RemoveNearest(t *testing.T) {
	reg := NewRegistry(&memStore{})

	_, err := reg.RemoveNearest(pose(0, 0, 0))
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, reg.Add(NewStation("A", pose(0, 0, 0))))
	require.NoError(t, reg.Add(NewStation("B", pose(100, 0, 0))))

	snap, err := reg.RemoveNearest(pose(90, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, "B", snap.Name)
	assert.Equal(t, []string{"A"}, names(reg.Stations()))
}

func TestRegistry_Nearest(t *testing.T) {
	reg := NewRegistry(&memStore{})

	_, ok := reg.Nearest(pose(0, 0, 0))
	assert.False(t, ok, "empty registry")

	require.NoError(t, reg.Add(NewStation("A", pose(0, 0, 0))))
	got, ok := reg.Nearest(pose(1000, 0, 0))
	require.True(t, ok)
	assert.Equal(t, "A", got.Name, "single station is always nearest")

	require.NoError(t, reg.Add(NewStation("B", pose(100, 0, 0))))
	require.NoError(t, reg.Add(NewStation("C", pose(200, 0, 0))))

	tests := []struct {
		at   model.Pose
		want string
	}{
		{pose(10, 0, 0), "A"},
		{pose(120, 0, 0), "B"},
		{pose(400, 0, 0), "C"},
		{pose(150.5, 0.1, 0.5), "B"}, // equidistant to B and C: first inserted wins
		{pose(50.5, 0.1, 0.5), "A"},  // equidistant to A and B
	}
	for _, tt := range tests {
		got, ok := reg.Nearest(tt.at)
		require.True(t, ok)
		assert.Equal(t, tt.want, got.Name, "at %+v", tt.at)
	}

	_, ok = reg.Nearest(model.NewPose("world", model.DimensionEnd, 0, 0, 0))
	assert.False(t, ok, "stations in another dimension are never selected")
}

func TestRegistry_DiscoverThenRespawn(t *testing.T) {
	store := &memStore{}
	rec := &countingRecorder{}
	reg := NewRegistry(store, WithRand(seq(0.5)), WithRecorder(rec))
	require.NoError(t, reg.Add(NewStation("A", pose(0, 64, 0))))
	require.NoError(t, reg.Add(NewStation("B", pose(300, 64, 0))))
	savesBefore := store.saveCount()

	fallback := pose(-1000, 70, -1000)

	// Not discovered yet: world spawn.
	got := reg.NearestDiscoveredRespawn("steve", pose(150, 64, 0), fallback)
	assert.Equal(t, fallback, got)

	snap, ok := reg.Discover("steve", pose(3, 64, 3))
	require.True(t, ok)
	assert.Equal(t, "A", snap.Name)
	assert.Contains(t, snap.Discoverers, "steve")
	assert.Equal(t, savesBefore+1, store.saveCount())

	_, ok = reg.Discover("steve", pose(3, 64, 3))
	assert.False(t, ok, "second discovery is a no-op")
	assert.Equal(t, savesBefore+1, store.saveCount())

	// Died near B, which steve never visited: still respawns at A.
	got = reg.NearestDiscoveredRespawn("steve", pose(280, 64, 0), fallback)
	assert.Equal(t, 5.5, got.X)
	assert.Equal(t, 5.5, got.Z)
	assert.InDelta(t, 64.1, got.Y, 1e-9)

	assert.Equal(t, int64(1), rec.discoveries.Load())
}

func TestRegistry_DiscoveredRespawn(t *testing.T) {
	reg := NewRegistry(&memStore{}, WithRand(seq(0.1)))

	_, ok := reg.DiscoveredRespawn("steve", pose(0, 0, 0))
	assert.False(t, ok, "empty registry")

	require.NoError(t, reg.Add(NewStation("A", pose(0, 64, 0))))
	_, ok = reg.DiscoveredRespawn("steve", pose(100, 64, 0))
	assert.False(t, ok, "nothing discovered")

	got, ok := reg.DiscoveredRespawn("steve", pose(1, 64, 1))
	require.True(t, ok)
	assert.Equal(t, 2.5, got.X)
	assert.Equal(t, 2.5, got.Z)
}

func TestRegistry_DiscoverOutsideRadius(t *testing.T) {
	store := &memStore{}
	reg := NewRegistry(store)
	require.NoError(t, reg.Add(NewStation("A", pose(0, 0, 0))))

	_, ok := reg.Discover("steve", pose(30, 0, 0))
	assert.False(t, ok)

	_, ok = NewRegistry(store).Discover("steve", pose(0, 0, 0))
	assert.False(t, ok, "empty registry")
}

func TestRegistry_RespawnDiscoversStationUnderfoot(t *testing.T) {
	store := &memStore{}
	reg := NewRegistry(store, WithRand(seq(0.0)))
	require.NoError(t, reg.Add(NewStation("A", pose(0, 0, 0))))
	saves := store.saveCount()

	got := reg.NearestDiscoveredRespawn("alex", pose(2, 0, 2), pose(999, 0, 999))
	assert.Equal(t, 2.5, got.X)
	assert.Equal(t, saves+1, store.saveCount(), "implicit discovery is persisted")

	snaps := reg.Stations()
	assert.Equal(t, []string{"alex"}, snaps[0].Discoverers)
}

func TestRegistry_RespawnPicksClosestDiscovered(t *testing.T) {
	reg := NewRegistry(&memStore{}, WithRand(seq(0.0)))
	a := NewStation("A", pose(0, 0, 0))
	b := NewStation("B", pose(100, 0, 0))
	c := NewStation("C", pose(200, 0, 0))
	for _, st := range []*Station{a, b, c} {
		st.AddDiscoverer("steve")
		require.NoError(t, reg.Add(st))
	}

	got := reg.NearestDiscoveredRespawn("steve", pose(180, 0, 0), pose(0, 0, 0))
	assert.Equal(t, 202.5, got.X)
}

func TestRegistry_LoadPartial(t *testing.T) {
	store := &memStore{
		records: []Record{
			{Name: "A", World: "world", Dimension: model.DimensionNormal, X: 0, Y: 64, Z: 0, Discoverers: []string{"steve"}},
			{Name: "A", World: "world", Dimension: model.DimensionNormal, X: 500, Y: 64, Z: 0},
			{World: "world", Dimension: model.DimensionNormal, X: 1000, Y: 64, Z: 0},
		},
		loadErr: errors.New("unexpected EOF"),
	}
	reg := NewRegistry(store)

	err := reg.Load()
	require.Error(t, err)

	snaps := reg.Stations()
	require.Len(t, snaps, 3)
	assert.Equal(t, "A", snaps[0].Name)
	assert.Equal(t, []string{"steve"}, snaps[0].Discoverers)
	assert.NotEqual(t, "A", snaps[1].Name, "duplicate name is replaced")
	assert.NotEmpty(t, snaps[2].Name, "missing name is synthesized")
}

func TestRegistry_SnapshotsAreDetached(t *testing.T) {
	reg := NewRegistry(&memStore{})
	require.NoError(t, reg.Add(NewStation("A", pose(0, 0, 0))))
	_, ok := reg.Discover("steve", pose(0, 0, 0))
	require.True(t, ok)

	snaps := reg.Stations()
	snaps[0].Discoverers[0] = "mallory"

	assert.Equal(t, []string{"steve"}, reg.Stations()[0].Discoverers)
}

func TestRegistry_ConcurrentAddKeepsSeparation(t *testing.T) {
	store := &memStore{}
	reg := NewRegistry(store)

	var wg sync.WaitGroup
	var accepted atomic.Int64
	for i := range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Candidates every 10 units along X: many pairs conflict.
			if err := reg.Add(NewStation("", pose(float64(i*10), 0, 0))); err == nil {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()

	snaps := reg.Stations()
	assert.Equal(t, int(accepted.Load()), len(snaps))
	for i := range snaps {
		for j := i + 1; j < len(snaps); j++ {
			d := snaps[i].Placement.Distance(snaps[j].Placement)
			assert.GreaterOrEqual(t, d, MinSeparation, "%s vs %s", snaps[i].Name, snaps[j].Name)
		}
	}

	// The final save reflects the final state.
	reloaded := NewRegistry(store)
	require.NoError(t, reloaded.Load())
	assert.Equal(t, len(snaps), reloaded.Len())
}

func TestRegistry_ConcurrentDiscoveryAndScans(t *testing.T) {
	reg := NewRegistry(&memStore{})
	for i := range 5 {
		require.NoError(t, reg.Add(NewStation("", pose(float64(i*100), 0, 0))))
	}

	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			actor := string(rune('a' + i%26))
			at := pose(float64((i%5)*100), 0, 0)
			reg.Discover(actor, at)
			reg.NearestDiscoveredRespawn(actor, at, pose(0, 0, 0))
			reg.Nearest(at)
		}()
	}
	wg.Wait()

	for _, snap := range reg.Stations() {
		seen := map[string]bool{}
		for _, d := range snap.Discoverers {
			assert.False(t, seen[d], "duplicate discoverer %s at %s", d, snap.Name)
			seen[d] = true
		}
	}
}

package tagstore

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upnorway/sanity-plugin-media/internal/domain"
)

func tag(tagID, name string) domain.Tag {
	return domain.Tag{ID: tagID, Type: domain.TagDocumentType, Rev: "r-" + tagID, Name: domain.NewSlug(name)}
}

func names(s State) []string {
	out := make([]string, 0, len(s.AllIDs))
	for _, item := range Tags(s) {
		out = append(out, item.Tag.Name.Current)
	}
	return out
}

func checkBijection(s State) error {
	if len(s.ByIDs) != len(s.AllIDs) {
		return fmt.Errorf("allIds has %d entries, byIds has %d", len(s.AllIDs), len(s.ByIDs))
	}
	seen := make(map[string]struct{}, len(s.AllIDs))
	for _, tagID := range s.AllIDs {
		if _, dup := seen[tagID]; dup {
			return fmt.Errorf("duplicate id %q in allIds", tagID)
		}
		seen[tagID] = struct{}{}

		item, ok := s.ByIDs[tagID]
		if !ok {
			return fmt.Errorf("id %q missing from byIds", tagID)
		}
		if item.Tag.ID != tagID {
			return fmt.Errorf("byIds[%q] holds tag %q", tagID, item.Tag.ID)
		}
	}
	return nil
}

func assertBijection(t *testing.T, s State) {
	t.Helper()
	require.NoError(t, checkBijection(s))
}

func TestReduce_FetchAndSortScenario(t *testing.T) {
	s := Reduce(Initial(), FetchRequest{})
	assert.True(t, s.Fetching)

	s = Reduce(s, FetchComplete{Tags: []domain.Tag{tag("t1", "blue"), tag("t2", "Red")}})
	assert.False(t, s.Fetching)
	assert.Equal(t, 2, s.FetchCount)
	assert.Equal(t, []string{"blue", "Red"}, names(s), "fetch keeps payload order")

	s = Reduce(s, Sort{})
	assert.Equal(t, []string{"Red", "blue"}, names(s))
	assertBijection(t, s)
}

func TestReduce_DoesNotMutateInput(t *testing.T) {
	before := Reduce(Initial(), FetchComplete{Tags: []domain.Tag{tag("t1", "b"), tag("t2", "a")}})
	snapshotIDs := append([]string(nil), before.AllIDs...)

	after := Reduce(before, Sort{})
	after = Reduce(after, UpdateRequest{Tag: before.ByIDs["t1"].Tag, Name: "c"})
	after = Reduce(after, DeleteComplete{TagID: "t2"})

	assert.Equal(t, snapshotIDs, before.AllIDs)
	assert.Len(t, before.ByIDs, 2)
	assert.False(t, before.ByIDs["t1"].Updating)
	assert.Equal(t, []string{"t1"}, after.AllIDs)
}

func TestReduce_SortIdempotentAndStable(t *testing.T) {
	s := Reduce(Initial(), FetchComplete{Tags: []domain.Tag{
		tag("a1", "same"),
		tag("b", "alpha"),
		tag("a2", "same"),
		tag("c", "Zed"),
		tag("a3", "same"),
	}})

	once := Reduce(s, Sort{})
	twice := Reduce(once, Sort{})

	assert.Equal(t, []string{"c", "b", "a1", "a2", "a3"}, once.AllIDs)
	assert.Equal(t, once.AllIDs, twice.AllIDs)
}

func TestReduce_CreateLifecycle(t *testing.T) {
	s := Reduce(Initial(), CreateRequest{Name: "Red"})
	assert.True(t, s.Creating)

	s = Reduce(s, CreateError{Name: "Red", Error: domain.HTTPError{Message: "Tag already exists", StatusCode: 409}})
	assert.False(t, s.Creating)
	require.NotNil(t, s.CreatingError)
	assert.Equal(t, 409, s.CreatingError.StatusCode)

	s = Reduce(s, DialogShowTagCreate{})
	assert.Nil(t, s.CreatingError)

	s = Reduce(s, CreateRequest{Name: "Red"})
	s = Reduce(s, CreateComplete{Tag: tag("t1", "Red")})
	s = Reduce(s, CreateComplete{Tag: tag("t1", "Red")})
	assert.False(t, s.Creating)
	assert.Equal(t, []string{"t1"}, s.AllIDs, "duplicate completion appends once")
	assertBijection(t, s)
}

func TestReduce_UpdateLifecycle(t *testing.T) {
	s := Reduce(Initial(), FetchComplete{Tags: []domain.Tag{tag("t1", "Red")}})
	s = Reduce(s, UpdateError{Tag: tag("t1", "Red"), Error: domain.HTTPError{Message: "boom", StatusCode: 500}})
	require.NotNil(t, s.ByIDs["t1"].Error)

	s = Reduce(s, UpdateRequest{Tag: tag("t1", "Red"), Name: "Crimson"})
	assert.True(t, s.ByIDs["t1"].Updating)
	assert.Nil(t, s.ByIDs["t1"].Error, "a new attempt clears the error")

	s = Reduce(s, UpdateComplete{Tag: tag("t1", "Crimson")})
	assert.False(t, s.ByIDs["t1"].Updating)
	assert.Equal(t, "Crimson", s.ByIDs["t1"].Tag.Name.Current)
}

func TestReduce_DeleteRequestClearsAllErrors(t *testing.T) {
	s := Reduce(Initial(), FetchComplete{Tags: []domain.Tag{tag("t1", "a"), tag("t2", "b"), tag("t3", "c")}})
	s = Reduce(s, UpdateError{Tag: tag("t2", "b"), Error: domain.HTTPError{Message: "x", StatusCode: 500}})
	s = Reduce(s, DeleteError{Tag: tag("t3", "c"), Error: domain.HTTPError{Message: "y", StatusCode: 409}})

	s = s.withItem("t1", func(item *domain.TagItem) { item.Picked = true })
	s = Reduce(s, DeleteRequest{Tag: tag("t1", "a")})

	for _, item := range s.ByIDs {
		assert.Nil(t, item.Error)
	}
	assert.True(t, s.ByIDs["t1"].Updating)
	assert.False(t, s.ByIDs["t1"].Picked)

	s = Reduce(s, DeleteComplete{TagID: "t1"})
	assert.Equal(t, []string{"t2", "t3"}, s.AllIDs)
	assertBijection(t, s)
}

func TestReduce_ListenerQueues(t *testing.T) {
	s := Reduce(Initial(), FetchComplete{Tags: []domain.Tag{tag("t1", "a")}})

	s = Reduce(s, ListenerCreateQueueComplete{Tags: []domain.Tag{tag("t2", "b"), tag("t1", "a2")}})
	assert.Equal(t, []string{"t1", "t2"}, s.AllIDs)
	assert.Equal(t, "a2", s.ByIDs["t1"].Tag.Name.Current)

	s = Reduce(s, ListenerUpdateQueueComplete{Tags: []domain.Tag{tag("t2", "b2"), tag("ghost", "g")}})
	assert.Equal(t, "b2", s.ByIDs["t2"].Tag.Name.Current)
	_, ok := s.ByIDs["ghost"]
	assert.False(t, ok, "updates never insert")

	s = Reduce(s, ListenerDeleteQueueComplete{TagIDs: []string{"t1", "ghost"}})
	assert.Equal(t, []string{"t2"}, s.AllIDs)
	assertBijection(t, s)
}

func TestReduce_AbsentIDIsNoOp(t *testing.T) {
	s := Reduce(Initial(), FetchComplete{Tags: []domain.Tag{tag("t1", "a")}})

	for _, a := range []Action{
		UpdateRequest{Tag: tag("missing", "x")},
		UpdateComplete{Tag: tag("missing", "x")},
		UpdateError{Tag: tag("missing", "x")},
		DeleteRequest{Tag: tag("missing", "x")},
		DeleteComplete{TagID: "missing"},
		DeleteError{Tag: tag("missing", "x")},
		DialogShowTagEdit{TagID: "missing"},
		AssetTagsAddRequest{Tag: tag("missing", "x")},
		AssetTagsRemoveError{Tag: tag("missing", "x")},
	} {
		next := Reduce(s, a)
		assert.Equal(t, s, next, "action %s", a.Type())
	}
}

func TestReduce_AssetTagFlags(t *testing.T) {
	s := Reduce(Initial(), FetchComplete{Tags: []domain.Tag{tag("t1", "a")}})

	s = Reduce(s, AssetTagsAddRequest{Tag: tag("t1", "a")})
	assert.True(t, s.ByIDs["t1"].Updating)
	s = Reduce(s, AssetTagsAddComplete{Tag: tag("t1", "a")})
	assert.False(t, s.ByIDs["t1"].Updating)

	s = Reduce(s, AssetTagsRemoveRequest{Tag: tag("t1", "a")})
	assert.True(t, s.ByIDs["t1"].Updating)
	s = Reduce(s, AssetTagsRemoveError{Tag: tag("t1", "a")})
	assert.False(t, s.ByIDs["t1"].Updating)
}

func TestReduce_OperationFlags(t *testing.T) {
	s := Reduce(Initial(), CheckAndCreateTagsSuccess{Message: "ok"})
	assert.Equal(t, Outcome{Success: true}, OperationOutcome(s))

	s = Reduce(s, CheckAndCreateTagsFailure{Message: "bad"})
	assert.Equal(t, Outcome{Failure: true}, OperationOutcome(s))

	s = Reduce(s, ResetTagsOperationState{})
	assert.Equal(t, Outcome{}, OperationOutcome(s))
}

func TestReduce_PanelVisible(t *testing.T) {
	s := Initial()
	assert.True(t, s.PanelVisible)

	s = Reduce(s, PanelVisibleSet{Visible: false})
	assert.False(t, s.PanelVisible)
}

// TestReduce_BijectionUnderRandomSequences applies random transitions and
// checks the allIds/byIds bijection after each one.
func TestReduce_BijectionUnderRandomSequences(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	ids := []string{"t1", "t2", "t3", "t4", "t5", "t6"}
	pick := func() domain.Tag {
		tagID := ids[r.IntN(len(ids))]
		return tag(tagID, string(rune('a'+r.IntN(5))))
	}

	builders := []func() Action{
		func() Action { return CreateComplete{Tag: pick()} },
		func() Action { return UpdateComplete{Tag: pick()} },
		func() Action { return UpdateRequest{Tag: pick()} },
		func() Action { return DeleteRequest{Tag: pick()} },
		func() Action { return DeleteComplete{TagID: pick().ID} },
		func() Action { return DeleteError{Tag: pick()} },
		func() Action { return FetchComplete{Tags: []domain.Tag{pick(), pick(), pick()}} },
		func() Action { return ListenerCreateQueueComplete{Tags: []domain.Tag{pick(), pick()}} },
		func() Action { return ListenerUpdateQueueComplete{Tags: []domain.Tag{pick()}} },
		func() Action { return ListenerDeleteQueueComplete{TagIDs: []string{pick().ID, pick().ID}} },
		func() Action { return Sort{} },
		func() Action { return PanelVisibleSet{Visible: r.IntN(2) == 0} },
	}

	for run := range 50 {
		s := Initial()
		for step := range 200 {
			a := builders[r.IntN(len(builders))]()
			s = Reduce(s, a)
			if err := checkBijection(s); err != nil {
				t.Fatalf("run %d step %d after %s: %v", run, step, a.Type(), err)
			}
		}
	}
}

func TestSelectors(t *testing.T) {
	s := Reduce(Initial(), FetchComplete{Tags: []domain.Tag{tag("t1", "Red"), tag("t2", "blue")}})

	item, ok := TagByID(s, "t2")
	require.True(t, ok)
	assert.Equal(t, "blue", item.Tag.Name.Current)

	tagID, ok := FindTagIDByName(s, "Red")
	require.True(t, ok)
	assert.Equal(t, "t1", tagID)

	_, ok = FindTagIDByName(s, "red")
	assert.False(t, ok, "names compare case-sensitively")

	asset := &domain.Asset{ID: "image-1"}
	asset.Opt.Media.Tags = []domain.Reference{
		domain.NewWeakReference("dangling"),
		domain.NewWeakReference("t2"),
	}
	assert.Equal(t, []domain.TagSelectOption{{Label: "blue", Value: "t2"}}, TagSelectOptions(s, asset))

	asset.Opt.Media.Tags = []domain.Reference{domain.NewWeakReference("dangling")}
	assert.Nil(t, TagSelectOptions(s, asset))
	assert.Nil(t, TagSelectOptions(s, nil))
}

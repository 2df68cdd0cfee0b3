package rbac

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/helpdesk-rbac/pkg/observability"
)

func teamDirectory() *fakeDirectory {
	return &fakeDirectory{members: map[string][]string{
		gV1:    {"Alice@example.com", "bob@example.com"},
		gV2:    {"bob@EXAMPLE.com", "carol@example.com", ""},
		gAdmin: {"root@example.com"},
		gTech:  {"agent@example.com"},
	}}
}

func newTestDirectory(dir *fakeDirectory) *GroupMemberDirectory {
	loader, _ := newTestLoader(testRows())
	logger, _ := NewTestLogger()
	return NewGroupMemberDirectory(loader, dir, nil, logger, nil)
}

func TestGroupMemberDirectory_CachesRoster(t *testing.T) {
	dir := teamDirectory()
	directory := newTestDirectory(dir)
	ctx := context.Background()

	first := directory.Resolve(ctx, []string{gV1, gV2})
	second := directory.Resolve(ctx, []string{gV2, gV1, gV1})

	assert.Equal(t, []string{"alice@example.com", "bob@example.com", "carol@example.com"}, first)
	assert.Equal(t, first, second)

	_, groups := dir.calls()
	assert.Equal(t, 2, groups, "one query per group, second resolve served from the slot")
}

func TestGroupMemberDirectory_KeyChangeRequeries(t *testing.T) {
	dir := teamDirectory()
	directory := newTestDirectory(dir)
	ctx := context.Background()

	directory.Resolve(ctx, []string{gV1, gV2})
	assert.Equal(t, []string{"alice@example.com", "bob@example.com"}, directory.Resolve(ctx, []string{gV1}))

	_, groups := dir.calls()
	assert.Equal(t, 3, groups)
}

func TestGroupMemberDirectory_StripsElevatedGroups(t *testing.T) {
	dir := teamDirectory()
	logger, hook := NewTestLogger()
	loader, _ := newTestLoader(testRows())
	directory := NewGroupMemberDirectory(loader, dir, nil, logger, nil)

	emails := directory.Resolve(context.Background(), []string{gAdmin, gV1, gTech})

	assert.Equal(t, []string{"alice@example.com", "bob@example.com"}, emails)
	assert.NotContains(t, emails, "root@example.com")
	assert.NotContains(t, dir.groupsAsked, gAdmin)
	assert.NotContains(t, dir.groupsAsked, gTech)
	assert.Len(t, hook.AllEntries(), 2)
}

func TestGroupMemberDirectory_OnlyElevatedGroups(t *testing.T) {
	dir := teamDirectory()
	directory := newTestDirectory(dir)

	emails := directory.Resolve(context.Background(), []string{gAdmin})

	require.NotNil(t, emails)
	assert.Empty(t, emails)
	_, groups := dir.calls()
	assert.Zero(t, groups)
}

func TestGroupMemberDirectory_EmptyInput(t *testing.T) {
	directory := newTestDirectory(teamDirectory())

	assert.Empty(t, directory.Resolve(context.Background(), nil))
}

func TestGroupMemberDirectory_PartialFailure(t *testing.T) {
	dir := teamDirectory()
	dir.failGroups = map[string]bool{gV1: true}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	loader, _ := newTestLoader(testRows())
	directory := NewGroupMemberDirectory(loader, dir, nil, nil, metrics).WithWorkers(1)

	emails := directory.Resolve(context.Background(), []string{gV1, gV2})

	assert.Equal(t, []string{"bob@example.com", "carol@example.com"}, emails)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.DirectoryErrorsTotal.WithLabelValues("group_members")))
}

func TestGroupMemberDirectory_NoSource(t *testing.T) {
	loader, _ := newTestLoader(testRows())
	directory := NewGroupMemberDirectory(loader, nil, nil, nil, nil)

	assert.Empty(t, directory.Resolve(context.Background(), []string{gV1}))
}

func TestGroupMemberDirectory_Invalidate(t *testing.T) {
	dir := teamDirectory()
	directory := newTestDirectory(dir)
	ctx := context.Background()

	directory.Resolve(ctx, []string{gV1})
	directory.Invalidate(ctx)
	directory.Resolve(ctx, []string{gV1})

	_, groups := dir.calls()
	assert.Equal(t, 2, groups)
}

func TestGroupMemberDirectory_SharedRedisSlot(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	dir := teamDirectory()
	loader, _ := newTestLoader(testRows())
	ctx := context.Background()

	replicaA := NewGroupMemberDirectory(loader, dir, NewRedisSlot[[]string](client, "roster", 0, nil), nil, nil)
	replicaB := NewGroupMemberDirectory(loader, dir, NewRedisSlot[[]string](client, "roster", 0, nil), nil, nil)

	fromA := replicaA.Resolve(ctx, []string{gV1})
	fromB := replicaB.Resolve(ctx, []string{gV1})

	assert.Equal(t, fromA, fromB)
	_, groups := dir.calls()
	assert.Equal(t, 1, groups, "second replica reads the shared slot")
}

func TestGroupMemberDirectory_Workers(t *testing.T) {
	dir := &fakeDirectory{members: map[string][]string{}}
	var ids []string
	rows := testRows()
	for i := 0; i < 20; i++ {
		id := "VIS-" + string(rune('A'+i))
		ids = append(ids, id)
		dir.members[id] = []string{id + "@example.com"}
		rows = append(rows, RawGroupRole{GroupID: id, GroupType: "visibility", IsActive: true})
	}
	loader, _ := newTestLoader(rows)
	directory := NewGroupMemberDirectory(loader, dir, nil, nil, nil).WithWorkers(3).WithWorkers(0)

	emails := directory.Resolve(context.Background(), ids)

	assert.Len(t, emails, 20)
	assert.True(t, sort.StringsAreSorted(emails), "merged in sorted group order")
}

func TestGroupMemberDirectory_IncompleteRosterIsNotCached(t *testing.T) {
	dir := teamDirectory()
	dir.failGroups = map[string]bool{gV1: true}
	directory := newTestDirectory(dir)
	ctx := context.Background()

	partial := directory.Resolve(ctx, []string{gV1, gV2})
	assert.Equal(t, []string{"bob@example.com", "carol@example.com"}, partial)

	dir.mu.Lock()
	dir.failGroups = nil
	dir.mu.Unlock()

	full := directory.Resolve(ctx, []string{gV1, gV2})
	assert.Equal(t, []string{"alice@example.com", "bob@example.com", "carol@example.com"}, full)
	directory.Resolve(ctx, []string{gV1, gV2})

	_, groups := dir.calls()
	assert.Equal(t, 4, groups, "the recovered roster is queried again, then cached")
}

func TestGroupMemberDirectory_CancelledRequestIsNotCached(t *testing.T) {
	dir := teamDirectory()
	dir.err = context.Canceled
	directory := newTestDirectory(dir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Empty(t, directory.Resolve(ctx, []string{gV1}))

	dir.mu.Lock()
	dir.err = nil
	dir.mu.Unlock()
	assert.Equal(t, []string{"alice@example.com", "bob@example.com"}, directory.Resolve(context.Background(), []string{gV1}))
}

func TestNewManager_InMemorySlotsExpire(t *testing.T) {
	manager := NewManager(Options{ConfigTTL: 2 * time.Minute})

	rosters, ok := manager.directory.slot.(*MemorySlot[[]string])
	require.True(t, ok)
	assert.Equal(t, 2*time.Minute, rosters.ttl)

	memberships, ok := manager.memberships.slot.(*MemorySlot[[]string])
	require.True(t, ok)
	assert.Equal(t, 2*time.Minute, memberships.ttl)
}

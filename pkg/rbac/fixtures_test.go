package rbac

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var errDirectoryDown = errors.New("directory unavailable")

// fakeRowSource serves fixed rows and counts fetches
type fakeRowSource struct {
	rows  []RawGroupRole
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (f *fakeRowSource) FetchGroupRoles(ctx context.Context) ([]RawGroupRole, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

// switchRowSource fails while down is set and honours cancellation
type switchRowSource struct {
	rows  []RawGroupRole
	down  atomic.Bool
	calls atomic.Int32
}

func (f *switchRowSource) FetchGroupRoles(ctx context.Context) ([]RawGroupRole, error) {
	f.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.down.Load() {
		return nil, errors.New("list service unavailable")
	}
	return f.rows, nil
}

// fakeDirectory answers both membership questions from maps
type fakeDirectory struct {
	mu          sync.Mutex
	memberOf    map[string][]string
	members     map[string][]string
	failGroups  map[string]bool
	err         error
	userCalls   int
	groupCalls  int
	groupsAsked []string
}

func (f *fakeDirectory) MemberGroupIDs(ctx context.Context, email string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.memberOf[strings.ToLower(email)], nil
}

func (f *fakeDirectory) GroupMemberEmails(ctx context.Context, groupID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groupCalls++
	f.groupsAsked = append(f.groupsAsked, groupID)
	if f.err != nil || f.failGroups[groupID] {
		return nil, errDirectoryDown
	}
	return f.members[groupID], nil
}

func (f *fakeDirectory) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.userCalls, f.groupCalls
}

// Group ids used across tests
const (
	gAdmin      = "G-ADMIN"
	gTech       = "G1"
	gHR         = "G-HR"
	gTechPOS    = "G-TECH-POS"
	gPurchasing = "G-PURCH"
	gInventory  = "G-INV"
	gV1         = "V1"
	gV2         = "V2"
	gInactive   = "G-OLD"
	gUnknown    = "G-NOT-CONFIGURED"
)

func testRows() []RawGroupRole {
	return []RawGroupRole{
		{Title: "Admins", GroupID: gAdmin, GroupType: "admin", IsActive: true},
		{Title: "Tech", GroupID: gTech, GroupType: "department", Department: "Tech", IsActive: true},
		{Title: "HR", GroupID: gHR, GroupType: "department", Department: "HR", IsActive: true},
		{Title: "Tech POS", GroupID: gTechPOS, GroupType: "department", Department: "Tech", ProblemTypeSub: "POS", IsActive: true},
		{Title: "Purchasing", GroupID: gPurchasing, GroupType: "purchaser", IsActive: true},
		{Title: "Inventory", GroupID: gInventory, GroupType: "inventory", IsActive: true},
		{Title: "Store Team 1", GroupID: gV1, GroupType: "visibility", IsActive: true},
		{Title: "Store Team 2", GroupID: gV2, GroupType: "visibility", IsActive: true},
		{Title: "Retired", GroupID: gInactive, GroupType: "department", Department: "Legacy", IsActive: false},
	}
}

func testConfig() *Config {
	roles := make([]GroupRole, 0)
	for _, row := range testRows() {
		role, err := row.ToGroupRole()
		if err != nil {
			panic(err)
		}
		roles = append(roles, role)
	}
	return NewConfig(roles, SourceRemote, time.Unix(0, 0))
}

func newTestLoader(rows []RawGroupRole) (*ConfigLoader, *fakeRowSource) {
	source := &fakeRowSource{rows: rows}
	logger, _ := NewTestLogger()
	return NewConfigLoader(source, time.Minute, logger, nil), source
}

func ticketBy(email string) *Ticket {
	return &Ticket{ID: "T-" + email, Requester: &Person{Email: email}}
}

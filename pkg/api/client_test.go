package api_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/matt-steen/chore-board/pkg/api"
	"github.com/matt-steen/chore-board/pkg/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const boardJSON = `{
	"boardCode": "K7Q2ZP",
	"title": "flat 4b",
	"createdAt": "2024-05-01T08:00:00Z",
	"isRemove": true,
	"participants": [
		{"id": 1, "nickname": "alex", "color": "#ff0000", "userId": "alex@home"},
		{"id": "2", "nickname": "blair", "color": "#00ff00"}
	]
}`

const flatItemsJSON = `[
	{"id": 12, "title": "trash", "isCompleted": false, "createdAt": "2024-05-01T09:00:00Z"},
	{"id": "11", "title": "dishes", "isCompleted": false, "createdAt": "2024-05-01T09:00:00Z", "sortOrder": 1,
	 "assignee": {"id": 2, "nickname": "blair (old)", "color": "#000000"}},
	{"id": 13, "title": "laundry", "isCompleted": false, "createdAt": "2024-05-01T08:00:00Z", "sortOrder": "high"},
	{"id": 14, "title": "mop", "isCompleted": true, "createdAt": "2024-05-01T07:00:00Z",
	 "completedAt": "2024-05-01T10:30:00.250Z", "sortOrder": null}
]`

const splitItemsJSON = `{
	"incomplete": [{"id": 21, "title": "sweep", "isCompleted": false, "createdAt": "2024-05-01T09:00:00", "sortOrder": 2}],
	"completed": [{"id": 22, "title": "dust", "isCompleted": true, "createdAt": "2024-05-01T09:00:00", "completedAt": null}]
}`

type recorded struct {
	method string
	path   string
	query  string
	header http.Header
	body   map[string]any
}

type fakeService struct {
	mu       sync.Mutex
	requests []recorded
	routes   map[string]func(w http.ResponseWriter)
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)

	rec := recorded{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery, header: r.Header}
	if len(data) > 0 {
		_ = sonic.Unmarshal(data, &rec.body)
	}

	f.mu.Lock()
	f.requests = append(f.requests, rec)
	f.mu.Unlock()

	if route, ok := f.routes[r.Method+" "+r.URL.Path]; ok {
		route(w)

		return
	}

	w.WriteHeader(http.StatusNotFound)
}

func (f *fakeService) all() []recorded {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]recorded{}, f.requests...)
}

func (f *fakeService) last() recorded {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.requests[len(f.requests)-1]
}

func respond(status int, body string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func newClient(t *testing.T, routes map[string]func(w http.ResponseWriter)) (*api.Client, *fakeService) {
	t.Helper()

	svc := &fakeService{routes: routes}
	server := httptest.NewServer(svc)
	t.Cleanup(server.Close)

	clock := func() time.Time { return time.Date(2024, 5, 1, 21, 0, 0, 0, time.Local) }

	client, err := api.NewClient(server.URL+"/api/",
		api.WithClock(clock),
		api.WithAuthToken("session-token"),
		api.WithLogger(zerolog.Nop()),
	)
	require.NoError(t, err)

	return client, svc
}

func TestNewClientRejectsBadURL(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	_, err := api.NewClient("ftp://example.com")
	assert.Error(err)

	_, err = api.NewClient("://nope")
	assert.Error(err)
}

func TestFetchBoardFlatItems(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	client, svc := newClient(t, map[string]func(http.ResponseWriter){
		"GET /api/boards/K7Q2ZP":        respond(http.StatusOK, boardJSON),
		"GET /api/boards/K7Q2ZP/chores": respond(http.StatusOK, flatItemsJSON),
	})

	b, err := client.FetchBoard(context.Background(), "K7Q2ZP", "edit-123")
	require.NoError(t, err)

	assert.Equal("K7Q2ZP", b.BoardCode)
	assert.True(b.Editable)
	assert.True(b.IsRemove)
	assert.Equal("flat 4b", b.Title)
	require.Len(t, b.Members, 2)
	assert.Equal("1", b.Members[0].ID)
	assert.Equal("alex@home", b.Members[0].UserID)
	assert.Same(b.Members[0], b.Creator)

	require.Len(t, b.Items, 4)

	ordered := []string{}
	for _, item := range b.Items {
		ordered = append(ordered, item.ID)
	}
	// ranked first, then unranked by creation time
	assert.Equal([]string{"11", "14", "13", "12"}, ordered)

	dishes := b.Items[0]
	require.NotNil(t, dishes.SortOrder)
	assert.Equal(1, *dishes.SortOrder)
	assert.Same(b.Members[1], dishes.Assignee)

	laundry := b.Items[2]
	assert.Nil(laundry.SortOrder, "non-numeric sort orders are treated as missing")

	mop := b.Items[1]
	assert.True(mop.Completed)
	require.NotNil(t, mop.CompletedAt)
	assert.Equal(time.Date(2024, 5, 1, 10, 30, 0, 250_000_000, time.UTC), mop.CompletedAt.UTC())

	for _, req := range svc.all() {
		assert.Equal("edit-123", req.header.Get("X-Edit-Token"))
		assert.Equal("Bearer session-token", req.header.Get("Authorization"))
	}

	var itemsReq recorded
	for _, req := range svc.all() {
		if req.path == "/api/boards/K7Q2ZP/chores" {
			itemsReq = req
		}
	}
	assert.Equal("date=2024-05-01", itemsReq.query)
}

func TestFetchBoardSplitItems(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	client, svc := newClient(t, map[string]func(http.ResponseWriter){
		"GET /api/boards/K7Q2ZP":        respond(http.StatusOK, `{"boardCode": 123456, "title": "t", "participants": []}`),
		"GET /api/boards/K7Q2ZP/chores": respond(http.StatusOK, splitItemsJSON),
	})

	b, err := client.FetchBoard(context.Background(), "K7Q2ZP", "")
	require.NoError(t, err)

	assert.Equal("123456", b.BoardCode)
	assert.False(b.Editable)
	assert.False(b.IsRemove)
	assert.Equal("0", b.Creator.ID, "boards without participants get a placeholder creator")
	assert.Empty(b.Members)

	require.Len(t, b.Items, 2)
	assert.Equal("21", b.Items[0].ID)
	assert.Equal(time.Date(2024, 5, 1, 9, 0, 0, 0, time.Local), b.Items[0].CreatedAt)
	assert.Equal("22", b.Items[1].ID)
	assert.True(b.Items[1].Completed)
	assert.Nil(b.Items[1].CompletedAt)

	for _, req := range svc.all() {
		assert.Empty(req.header.Get("X-Edit-Token"))
	}
}

func TestFetchBoardSplitWithMissingList(t *testing.T) {
	t.Parallel()

	client, _ := newClient(t, map[string]func(http.ResponseWriter){
		"GET /api/boards/K7Q2ZP":        respond(http.StatusOK, boardJSON),
		"GET /api/boards/K7Q2ZP/chores": respond(http.StatusOK, `{"incomplete": [{"id": 1, "title": "a"}], "completed": null}`),
	})

	b, err := client.FetchBoard(context.Background(), "K7Q2ZP", "")
	require.NoError(t, err)
	assert.Len(t, b.Items, 1)
}

func TestFetchBoardErrors(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	client, _ := newClient(t, map[string]func(http.ResponseWriter){
		"GET /api/boards/GONE00/chores": respond(http.StatusOK, `[]`),
		"GET /api/boards/AUTH00":        respond(http.StatusUnauthorized, `{"message": "token expired"}`),
		"GET /api/boards/AUTH00/chores": respond(http.StatusOK, `[]`),
		"GET /api/boards/BOOM00":        respond(http.StatusOK, boardJSON),
		"GET /api/boards/BOOM00/chores": respond(http.StatusBadGateway, `{"error": {"message": "upstream down"}}`),
	})

	_, err := client.FetchBoard(context.Background(), "GONE00", "")
	assert.ErrorIs(err, api.ErrNotFound)

	_, err = client.FetchBoard(context.Background(), "AUTH00", "")
	assert.ErrorIs(err, api.ErrUnauthorized)
	assert.Contains(err.Error(), "token expired")

	_, err = client.FetchBoard(context.Background(), "BOOM00", "")
	assert.ErrorIs(err, api.ErrServer)
	assert.NotErrorIs(err, api.ErrNotFound)
	assert.Contains(err.Error(), "upstream down")
}

func TestCreateItem(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	client, svc := newClient(t, map[string]func(http.ResponseWriter){
		"POST /api/boards/K7Q2ZP/chores": respond(http.StatusCreated,
			`{"id": 31, "title": "clean kitchen", "isCompleted": false, "createdAt": "2024-05-01T12:00:00Z"}`),
	})

	item, err := client.CreateItem(context.Background(), "K7Q2ZP", "clean kitchen", "2")
	require.NoError(t, err)
	assert.Equal("31", item.ID)
	assert.Nil(item.Assignee)

	req := svc.last()
	assert.Equal(http.MethodPost, req.method)
	assert.Equal("2024-05-01", req.body["date"])
	assert.Equal("clean kitchen", req.body["title"])
	assert.Equal(float64(2), req.body["assigneeId"])
	assert.Contains(req.body, "options")

	_, err = client.CreateItem(context.Background(), "K7Q2ZP", "nobody", "")
	require.NoError(t, err)
	assert.Nil(svc.last().body["assigneeId"])
}

func TestUpdateItemSendsOnlySetFields(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	client, svc := newClient(t, map[string]func(http.ResponseWriter){
		"PUT /api/boards/K7Q2ZP/chores/31": respond(http.StatusOK, `{"id": 31, "title": "scrub", "createdAt": "2024-05-01T12:00:00Z"}`),
	})

	item, err := client.UpdateItem(context.Background(), "K7Q2ZP", "31", model.ItemUpdate{Title: model.StringPtr("scrub")})
	require.NoError(t, err)
	assert.Equal("scrub", item.Title)
	assert.Equal(map[string]any{"title": "scrub"}, svc.last().body)

	_, err = client.UpdateItem(context.Background(), "K7Q2ZP", "31", model.ItemUpdate{AssigneeID: model.StringPtr("")})
	require.NoError(t, err)
	assert.Equal(map[string]any{"assigneeId": nil}, svc.last().body)
}

func TestToggleDeleteAndOrder(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	client, svc := newClient(t, map[string]func(http.ResponseWriter){
		"PATCH /api/boards/K7Q2ZP/chores/31/complete": respond(http.StatusOK,
			`{"id": 31, "title": "scrub", "isCompleted": true, "completedAt": "2024-05-01T12:30:00+09:00"}`),
		"DELETE /api/boards/K7Q2ZP/chores/31":      respond(http.StatusNoContent, ""),
		"PATCH /api/boards/K7Q2ZP/chores/31/order": respond(http.StatusNoContent, ""),
	})

	item, err := client.ToggleCompletion(context.Background(), "K7Q2ZP", "31")
	require.NoError(t, err)
	assert.True(item.Completed)
	assert.Equal(time.Date(2024, 5, 1, 3, 30, 0, 0, time.UTC), item.CompletedAt.UTC())

	assert.NoError(client.UpdateItemOrder(context.Background(), "K7Q2ZP", "31", 4))
	assert.Equal(map[string]any{"sortOrder": float64(4)}, svc.last().body)

	assert.NoError(client.DeleteItem(context.Background(), "K7Q2ZP", "31"))
	assert.Equal(http.MethodDelete, svc.last().method)

	assert.ErrorIs(client.DeleteItem(context.Background(), "K7Q2ZP", "99"), api.ErrNotFound)
}

func TestBulkUpdateAssignees(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	client, svc := newClient(t, map[string]func(http.ResponseWriter){
		"PATCH /api/boards/K7Q2ZP/chores/assignees": respond(http.StatusNoContent, ""),
	})

	err := client.BulkUpdateAssignees(context.Background(), "K7Q2ZP", []model.AssigneeChange{
		{ItemID: "31", AssigneeID: "2"},
		{ItemID: "32", AssigneeID: ""},
		{ItemID: "tmp-a", AssigneeID: "u-9"},
	})
	require.NoError(t, err)

	assert.Equal(map[string]any{"items": []any{
		map[string]any{"id": float64(31), "assigneeId": float64(2)},
		map[string]any{"id": float64(32), "assigneeId": nil},
		map[string]any{"id": "tmp-a", "assigneeId": "u-9"},
	}}, svc.last().body)
}

func TestBoardOperations(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	client, svc := newClient(t, map[string]func(http.ResponseWriter){
		"POST /api/boards":                     respond(http.StatusCreated, `{"boardCode": "N3WB0D", "editToken": "tok"}`),
		"GET /api/boards/K7Q2ZP":               respond(http.StatusOK, boardJSON),
		"POST /api/boards/K7Q2ZP/participants": respond(http.StatusCreated, `{"id": 3, "nickname": "casey", "color": "#0000ff"}`),
		"DELETE /api/boards/K7Q2ZP":            respond(http.StatusNoContent, ""),
	})

	created, err := client.CreateBoard(context.Background(), "new flat")
	require.NoError(t, err)
	assert.Equal(&api.CreatedBoard{BoardCode: "N3WB0D", EditToken: "tok", Title: "new flat"}, created)

	info, err := client.BoardInfo(context.Background(), "K7Q2ZP")
	require.NoError(t, err)
	assert.Equal("flat 4b", info.Title)

	member, err := client.JoinBoard(context.Background(), "K7Q2ZP", "casey", "#0000ff")
	require.NoError(t, err)
	assert.Equal(&model.User{ID: "3", Nickname: "casey", Color: "#0000ff"}, member)

	_, err = client.JoinBoard(context.Background(), "NOPE00", "casey", "#0000ff")
	assert.ErrorIs(err, api.ErrNotFound)

	assert.NoError(client.DeleteBoard(context.Background(), "K7Q2ZP", "tok"))
	assert.Equal("tok", svc.last().header.Get("X-Edit-Token"))
}

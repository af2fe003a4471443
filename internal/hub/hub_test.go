package hub

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"richmenu-editor/internal/domain"
	"richmenu-editor/internal/dto"
	"richmenu-editor/internal/repository/mocks"
)

// newTestHub 构造一个不跑 Run 循环的 Hub，测试直接调内部方法，
// 避免事件循环带来的时序问题。
func newTestHub(t *testing.T) (*Hub, *mocks.StateRepository) {
	t.Helper()
	stateRepo := new(mocks.StateRepository)
	// 订阅失败只会记日志并禁用跨实例转发，本地转发路径不受影响
	stateRepo.On("SubscribeEvents", mock.Anything, mock.Anything).
		Return(nil, nil, errors.New("pubsub disabled in tests")).Maybe()
	// 地址故意不可达：入队失败只会记日志，不影响转发路径
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { asynqClient.Close() })
	return NewHub(stateRepo, asynqClient), stateRepo
}

func joinedClient(h *Hub, projectID, userID, userName string) *Client {
	c := NewClient(h, nil, projectID, 1)
	c.SetIdentity(userID, userName, "#02a568")
	h.registerClient(c)
	return c
}

func encodeFrame(t *testing.T, event string, payload interface{}) []byte {
	t.Helper()
	env, err := dto.NewEnvelope(event, payload)
	require.NoError(t, err)
	raw, err := env.Encode()
	require.NoError(t, err)
	return raw
}

// receivedFrame 非阻塞地取客户端收到的下一帧。
func receivedFrame(t *testing.T, c *Client) (dto.Envelope, bool) {
	t.Helper()
	select {
	case raw := <-c.send:
		env, err := dto.DecodeEnvelope(raw)
		require.NoError(t, err)
		return env, true
	default:
		return dto.Envelope{}, false
	}
}

func TestHub_BroadcastExcludesSender(t *testing.T) {
	h, _ := newTestHub(t)
	sender := joinedClient(h, "7", "u1", "alice")
	other := joinedClient(h, "7", "u2", "bob")
	elsewhere := joinedClient(h, "8", "u3", "carol")

	h.broadcast("7", []byte(`{"event":"cursor:leave","payload":{}}`), sender)

	_, got := receivedFrame(t, sender)
	assert.False(t, got, "sender should not receive its own broadcast")

	env, got := receivedFrame(t, other)
	require.True(t, got, "room member should receive the broadcast")
	assert.Equal(t, dto.EventCursorLeave, env.Event)

	_, got = receivedFrame(t, elsewhere)
	assert.False(t, got, "member of a different room should not receive the broadcast")
}

func TestHub_JoinSendsSnapshotAndAnnounces(t *testing.T) {
	h, stateRepo := newTestHub(t)
	existing := joinedClient(h, "7", "u2", "bob")

	joiner := NewClient(h, nil, "7", 1)
	h.registerClient(joiner)

	snapshot := []domain.EditorTab{{UserID: "u2", UserName: "bob", Color: "#1c7ed6", RichMenuID: "rm1"}}
	stateRepo.On("GetActiveTabs", mock.Anything, "7").Return(snapshot, nil).Once()
	stateRepo.On("SetActiveTab", mock.Anything, "7", mock.MatchedBy(func(tab domain.EditorTab) bool {
		return tab.UserID == "u1" && tab.RichMenuID == ""
	}), mock.Anything).Return(nil).Once()
	stateRepo.On("PublishEvent", mock.Anything, "7", mock.Anything).Return(nil)

	raw := encodeFrame(t, dto.EventJoinProject, dto.JoinProject{
		ProjectID: "7", UserID: "u1", UserName: "alice", Color: "#02a568",
	})
	h.handleClientFrame(HubMessage{Type: "frame", ProjectID: "7", Client: joiner, RawData: raw})

	assert.True(t, joiner.Joined())
	assert.Equal(t, "alice", joiner.UserName())

	env, got := receivedFrame(t, joiner)
	require.True(t, got, "joiner should receive the tabs snapshot")
	assert.Equal(t, dto.EventTabsInitial, env.Event)
	var state dto.TabsInitialState
	require.NoError(t, json.Unmarshal(env.Payload, &state))
	require.Len(t, state.ActiveTabs, 1)
	assert.Equal(t, "u2", state.ActiveTabs[0].UserID)

	env, got = receivedFrame(t, existing)
	require.True(t, got, "existing member should be told about the joiner")
	assert.Equal(t, dto.EventUserJoined, env.Event)
	var joined dto.UserJoined
	require.NoError(t, json.Unmarshal(env.Payload, &joined))
	assert.Equal(t, "u1", joined.UserID)

	stateRepo.AssertExpectations(t)
}

func TestHub_MalformedJoinDropped(t *testing.T) {
	h, stateRepo := newTestHub(t)
	joiner := NewClient(h, nil, "7", 1)
	h.registerClient(joiner)

	raw := encodeFrame(t, dto.EventJoinProject, dto.JoinProject{ProjectID: "7"})
	h.handleClientFrame(HubMessage{Type: "frame", ProjectID: "7", Client: joiner, RawData: raw})

	assert.False(t, joiner.Joined())
	_, got := receivedFrame(t, joiner)
	assert.False(t, got, "join without user_id should produce no snapshot")
	stateRepo.AssertNotCalled(t, "SetActiveTab", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHub_TabSwitchRecordsPresenceAndRelays(t *testing.T) {
	h, stateRepo := newTestHub(t)
	sender := joinedClient(h, "7", "u1", "alice")
	other := joinedClient(h, "7", "u2", "bob")

	stateRepo.On("SetActiveTab", mock.Anything, "7", mock.MatchedBy(func(tab domain.EditorTab) bool {
		return tab.UserID == "u1" && tab.RichMenuID == "rm2"
	}), mock.Anything).Return(nil).Once()
	stateRepo.On("PublishEvent", mock.Anything, "7", mock.Anything).Return(nil)

	raw := encodeFrame(t, dto.EventTabSwitch, dto.TabSwitch{
		ProjectID: "7", RichMenuID: "rm2", UserID: "u1", UserName: "alice", Color: "#02a568",
	})
	h.handleClientFrame(HubMessage{Type: "frame", ProjectID: "7", Client: sender, RawData: raw})

	env, got := receivedFrame(t, other)
	require.True(t, got)
	assert.Equal(t, dto.EventTabSwitch, env.Event)
	_, got = receivedFrame(t, sender)
	assert.False(t, got, "tab switch must not echo back to the sender")

	stateRepo.AssertExpectations(t)
}

func TestHub_UpdateAreasRelayedVerbatim(t *testing.T) {
	h, stateRepo := newTestHub(t)
	sender := joinedClient(h, "7", "u1", "alice")
	other := joinedClient(h, "7", "u2", "bob")

	stateRepo.On("PublishEvent", mock.Anything, "7", mock.Anything).Return(nil)

	areas := []domain.Area{{
		Bounds: domain.Bounds{X: 0, Y: 0, Width: 1250, Height: 843},
		Action: domain.Action{Type: domain.ActionTypeMessage, Text: "hello"},
	}}
	raw := encodeFrame(t, dto.EventUpdateAreas, dto.UpdateAreas{
		ProjectID: "7", RichMenuID: "rm1", Areas: areas, Sender: "u1",
	})
	h.handleClientFrame(HubMessage{Type: "frame", ProjectID: "7", Client: sender, RawData: raw})

	env, got := receivedFrame(t, other)
	require.True(t, got)
	assert.Equal(t, dto.EventUpdateAreas, env.Event)
	var update dto.UpdateAreas
	require.NoError(t, json.Unmarshal(env.Payload, &update))
	assert.Equal(t, "u1", update.Sender)
	require.Len(t, update.Areas, 1)
	assert.Equal(t, 1250, update.Areas[0].Bounds.Width)
}

func TestHub_ExplicitLeaveAnnouncesAndKeepsConnection(t *testing.T) {
	h, stateRepo := newTestHub(t)
	leaver := joinedClient(h, "7", "u1", "alice")
	other := joinedClient(h, "7", "u2", "bob")

	stateRepo.On("RemoveActiveTab", mock.Anything, "7", "u1").Return(nil).Once()
	stateRepo.On("PublishEvent", mock.Anything, "7", mock.Anything).Return(nil)

	raw := encodeFrame(t, dto.EventLeaveProject, dto.LeaveProject{ProjectID: "7"})
	h.handleClientFrame(HubMessage{Type: "frame", ProjectID: "7", Client: leaver, RawData: raw})

	env, got := receivedFrame(t, other)
	require.True(t, got)
	assert.Equal(t, dto.EventUserLeft, env.Event)
	var left dto.UserLeft
	require.NoError(t, json.Unmarshal(env.Payload, &left))
	assert.Equal(t, "u1", left.UserID)
	assert.Equal(t, "alice", left.UserName)

	assert.False(t, leaver.Joined(), "identity should be cleared after leaving")
	assert.Contains(t, h.ActiveProjectIDs(), "7", "connection stays registered after leave")

	stateRepo.AssertExpectations(t)
}

func TestHub_UnregisterLastMemberCleansRoomState(t *testing.T) {
	h, stateRepo := newTestHub(t)
	member := joinedClient(h, "7", "u1", "alice")

	cleaned := make(chan struct{})
	stateRepo.On("RemoveActiveTab", mock.Anything, "7", "u1").Return(nil).Once()
	stateRepo.On("PublishEvent", mock.Anything, "7", mock.Anything).Return(nil)
	stateRepo.On("CleanupProjectState", mock.Anything, "7").Return(nil).
		Run(func(mock.Arguments) { close(cleaned) }).Once()

	h.unregisterClient(member)

	select {
	case <-cleaned:
	case <-time.After(time.Second):
		t.Fatal("expected project state cleanup after the room emptied")
	}
	assert.Empty(t, h.ActiveProjectIDs())
	stateRepo.AssertExpectations(t)
}

func TestHub_RemoteFramesFanOutToLocalRoom(t *testing.T) {
	stateRepo := new(mocks.StateRepository)
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { asynqClient.Close() })
	h := NewHub(stateRepo, asynqClient)

	frames := make(chan []byte, 4)
	closed := make(chan struct{})
	var closeOnce sync.Once
	closer := func() {
		closeOnce.Do(func() {
			close(frames)
			close(closed)
		})
	}
	stateRepo.On("SubscribeEvents", mock.Anything, "7").
		Return((<-chan []byte)(frames), closer, nil).Once()
	stateRepo.On("RemoveActiveTab", mock.Anything, "7", "u1").Return(nil)
	stateRepo.On("PublishEvent", mock.Anything, "7", mock.Anything).Return(nil)
	stateRepo.On("CleanupProjectState", mock.Anything, "7").Return(nil)

	go h.Run()
	t.Cleanup(h.Shutdown)
	member := joinedClient(h, "7", "u1", "alice")

	// 等房间的订阅建立完成
	require.Eventually(t, func() bool {
		h.roomsMu.RLock()
		defer h.roomsMu.RUnlock()
		_, ok := h.subCancels["7"]
		return ok
	}, time.Second, 5*time.Millisecond)

	inner := []byte(`{"event":"cursor:leave","payload":{"project_id":"7","user_id":"u9"}}`)
	remote, err := json.Marshal(relayEnvelope{Origin: "some-other-instance", Frame: inner})
	require.NoError(t, err)
	frames <- remote

	select {
	case raw := <-member.send:
		env, err := dto.DecodeEnvelope(raw)
		require.NoError(t, err)
		assert.Equal(t, dto.EventCursorLeave, env.Event)
	case <-time.After(time.Second):
		t.Fatal("expected the frame from another instance to reach the local member")
	}

	// 本实例自己发布的帧本地已广播过，订阅侧必须丢弃
	own, err := json.Marshal(relayEnvelope{Origin: h.instanceID, Frame: inner})
	require.NoError(t, err)
	frames <- own
	select {
	case <-member.send:
		t.Fatal("frame published by this instance must not be re-broadcast")
	case <-time.After(50 * time.Millisecond):
	}

	// 最后一个成员退出时订阅应被取消
	h.unregisterClient(member)
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("expected the subscription to be cancelled when the room emptied")
	}
	stateRepo.AssertExpectations(t)
}

func TestHub_ActiveProjectIDs(t *testing.T) {
	h, _ := newTestHub(t)
	assert.Empty(t, h.ActiveProjectIDs())

	joinedClient(h, "7", "u1", "alice")
	joinedClient(h, "7", "u2", "bob")
	joinedClient(h, "9", "u3", "carol")

	ids := h.ActiveProjectIDs()
	assert.ElementsMatch(t, []string{"7", "9"}, ids)
}

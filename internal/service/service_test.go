package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"ichat_backend/internal/config"
	"ichat_backend/internal/model"
	"ichat_backend/internal/repository"
	"ichat_backend/internal/util"
	"ichat_backend/pkg/database"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var pngBytes = append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52}, make([]byte, 64)...)

type testEnv struct {
	db            *gorm.DB
	uploadDir     string
	users         *repository.UserRepository
	relationships *RelationshipService
	conversations *ConversationService
	groups        *GroupService
	messages      *MessageService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	db, err := database.OpenSQLite(filepath.Join(dir, "ichat.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	uploadDir := filepath.Join(dir, "uploads")
	userRepo := repository.NewUserRepository(db)
	relRepo := repository.NewRelationshipRepository(db)
	convRepo := repository.NewConversationRepository(db, nil)
	msgRepo := repository.NewMessageRepository(db)

	rels := NewRelationshipService(relRepo, userRepo)
	convs := NewConversationService(convRepo, msgRepo, userRepo, rels)
	storage := &LocalStorageProvider{Config: &config.StorageConfig{Type: "local", LocalPath: uploadDir}}
	policy := UploadPolicy{
		MaxBytes:         1 << 20,
		AllowedTypes:     []string{"image/jpeg", "image/png"},
		MaxMessageLength: 100,
	}

	return &testEnv{
		db:            db,
		uploadDir:     uploadDir,
		users:         userRepo,
		relationships: rels,
		conversations: convs,
		groups:        NewGroupService(convRepo, userRepo, relRepo),
		messages:      NewMessageService(msgRepo, convs, storage, policy),
	}
}

func (e *testEnv) createUsers(t *testing.T, n int) []uint {
	t.Helper()
	ids := make([]uint, 0, n)
	for i := 0; i < n; i++ {
		u := &model.User{
			FullName: fmt.Sprintf("Member %d", i),
			Email:    fmt.Sprintf("member%d@example.com", i),
			Password: "x",
		}
		require.NoError(t, e.users.Create(context.Background(), u))
		ids = append(ids, u.ID)
	}
	return ids
}

// connect 建立 a 与 b 之间已接受的连接
func (e *testEnv) connect(t *testing.T, a, b uint) {
	t.Helper()
	ctx := context.Background()
	rel, err := e.relationships.RequestConnection(ctx, a, b)
	require.NoError(t, err)
	require.NoError(t, e.relationships.AcceptConnection(ctx, b, rel.ID))
}

func storedFiles(t *testing.T, dir string) []string {
	t.Helper()
	var files []string
	_ = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	return files
}

func assertKind(t *testing.T, err error, kind util.ErrorKind, reason string) {
	t.Helper()
	require.Error(t, err)
	appErr := util.AsAppError(err)
	assert.Equal(t, kind, appErr.Kind, "kind of %v", err)
	if reason != "" {
		assert.Equal(t, reason, appErr.Reason, "reason of %v", err)
	}
}

func TestRequestConnection(t *testing.T) {
	env := newTestEnv(t)
	ids := env.createUsers(t, 3)
	ctx := context.Background()

	_, err := env.relationships.RequestConnection(ctx, ids[0], ids[0])
	assertKind(t, err, util.KindValidation, util.ReasonSelfConnection)

	_, err = env.relationships.RequestConnection(ctx, ids[0], 999)
	assertKind(t, err, util.KindNotFound, util.ReasonUserNotFound)

	_, err = env.relationships.RequestConnection(ctx, 0, ids[1])
	assertKind(t, err, util.KindUnauthenticated, "")

	rel, err := env.relationships.RequestConnection(ctx, ids[0], ids[1])
	require.NoError(t, err)
	assert.Equal(t, model.RelationshipPending, rel.Status)

	_, err = env.relationships.RequestConnection(ctx, ids[0], ids[1])
	assertKind(t, err, util.KindConflict, util.ReasonDuplicateRelationship)
	_, err = env.relationships.RequestConnection(ctx, ids[1], ids[0])
	assertKind(t, err, util.KindConflict, util.ReasonDuplicateRelationship)

	pending, err := env.relationships.ListPending(ctx, ids[1])
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, ids[0], pending[0].User.ID)

	outgoing, err := env.relationships.ListOutgoing(ctx, ids[0])
	require.NoError(t, err)
	require.Len(t, outgoing, 1)
	assert.Equal(t, ids[1], outgoing[0].User.ID)
}

func TestAcceptConnectionOnlyByTarget(t *testing.T) {
	env := newTestEnv(t)
	ids := env.createUsers(t, 3)
	ctx := context.Background()

	rel, err := env.relationships.RequestConnection(ctx, ids[0], ids[1])
	require.NoError(t, err)

	assertKind(t, env.relationships.AcceptConnection(ctx, ids[0], rel.ID), util.KindNotFound, util.ReasonRequestNotPending)
	assertKind(t, env.relationships.AcceptConnection(ctx, ids[2], rel.ID), util.KindNotFound, util.ReasonRequestNotPending)
	require.NoError(t, env.relationships.AcceptConnection(ctx, ids[1], rel.ID))
	assertKind(t, env.relationships.AcceptConnection(ctx, ids[1], rel.ID), util.KindNotFound, util.ReasonRequestNotPending)

	for _, pair := range [][2]uint{{ids[0], ids[1]}, {ids[1], ids[0]}} {
		list, err := env.relationships.ListAccepted(ctx, pair[0])
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, pair[1], list[0].ID)
	}
}

func TestSearchUsersAnnotatesRelationship(t *testing.T) {
	env := newTestEnv(t)
	ids := env.createUsers(t, 3)
	ctx := context.Background()

	_, err := env.relationships.RequestConnection(ctx, ids[1], ids[0])
	require.NoError(t, err)

	results, err := env.relationships.SearchUsers(ctx, ids[0], "member")
	require.NoError(t, err)
	require.Len(t, results, 2)
	byID := map[uint]model.UserSearchResult{}
	for _, r := range results {
		byID[r.ID] = r
	}
	assert.Equal(t, model.RelationshipPending, byID[ids[1]].RelationshipStatus)
	assert.True(t, byID[ids[1]].Incoming)
	assert.Empty(t, byID[ids[2]].RelationshipStatus)

	empty, err := env.relationships.SearchUsers(ctx, ids[0], "   ")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStartOneToOneIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ids := env.createUsers(t, 3)
	ctx := context.Background()

	_, err := env.conversations.StartOneToOne(ctx, ids[0], ids[1])
	assertKind(t, err, util.KindUnauthorized, util.ReasonNotConnected)

	env.connect(t, ids[0], ids[1])

	first, err := env.conversations.StartOneToOne(ctx, ids[0], ids[1])
	require.NoError(t, err)
	again, err := env.conversations.StartOneToOne(ctx, ids[0], ids[1])
	require.NoError(t, err)
	reversed, err := env.conversations.StartOneToOne(ctx, ids[1], ids[0])
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, first, reversed)

	_, err = env.conversations.StartOneToOne(ctx, ids[0], ids[0])
	assertKind(t, err, util.KindValidation, util.ReasonSelfConversation)

	var count int64
	require.NoError(t, env.db.Model(&model.Conversation{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestStartOneToOneConcurrent(t *testing.T) {
	env := newTestEnv(t)
	ids := env.createUsers(t, 2)
	env.connect(t, ids[0], ids[1])
	ctx := context.Background()

	const workers = 8
	results := make([]uint, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := ids[0], ids[1]
			if i%2 == 1 {
				a, b = b, a
			}
			results[i], errs[i] = env.conversations.StartOneToOne(ctx, a, b)
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}

	var convs, participants int64
	require.NoError(t, env.db.Model(&model.Conversation{}).Count(&convs).Error)
	require.NoError(t, env.db.Model(&model.Participant{}).Count(&participants).Error)
	assert.EqualValues(t, 1, convs)
	assert.EqualValues(t, 2, participants)
}

func TestStartOneToOneReturnsWinnerAfterDuplicate(t *testing.T) {
	env := newTestEnv(t)
	ids := env.createUsers(t, 2)
	env.connect(t, ids[0], ids[1])
	ctx := context.Background()

	// 本次查找未命中之后，另一个请求抢先创建了会话
	var winner uint
	armed := true
	require.NoError(t, env.db.Callback().Query().After("gorm:query").Register("test:create_after_miss", func(d *gorm.DB) {
		if !armed || d.Statement.Table != "conversations" || !errors.Is(d.Error, gorm.ErrRecordNotFound) {
			return
		}
		armed = false
		conv, err := repository.NewConversationRepository(env.db, nil).CreateDirect(ctx, ids[1], ids[0])
		require.NoError(t, err)
		winner = conv.ID
	}))

	got, err := env.conversations.StartOneToOne(ctx, ids[0], ids[1])
	require.NoError(t, err)
	require.False(t, armed)
	assert.Equal(t, winner, got)

	var convs int64
	require.NoError(t, env.db.Model(&model.Conversation{}).Count(&convs).Error)
	assert.EqualValues(t, 1, convs)
}

func TestCreateGroupIncludesCreator(t *testing.T) {
	env := newTestEnv(t)
	ids := env.createUsers(t, 3)
	ctx := context.Background()

	conv, err := env.conversations.CreateGroup(ctx, ids[0], "  Team  ", "", []uint{ids[1], ids[2], ids[1], ids[0]})
	require.NoError(t, err)
	require.NotNil(t, conv.GroupID)
	assert.True(t, conv.IsGroup)

	info, err := env.conversations.GetConversationInfo(ctx, ids[1], conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Team", info.Name)
	assert.False(t, info.IsAdmin)
	require.NotNil(t, info.AdminID)
	assert.Equal(t, ids[0], *info.AdminID)
	memberIDs := make([]uint, 0, len(info.Members))
	for _, m := range info.Members {
		memberIDs = append(memberIDs, m.ID)
	}
	assert.ElementsMatch(t, ids, memberIDs)

	_, err = env.conversations.CreateGroup(ctx, ids[0], "", "", []uint{ids[1]})
	assertKind(t, err, util.KindValidation, "")
	_, err = env.conversations.CreateGroup(ctx, ids[0], "solo", "", []uint{ids[0]})
	assertKind(t, err, util.KindValidation, "")
	_, err = env.conversations.CreateGroup(ctx, ids[0], "ghosts", "", []uint{ids[1], 4242})
	assertKind(t, err, util.KindValidation, util.ReasonUnknownUsers)
}

func TestConversationInfoHiddenFromOutsiders(t *testing.T) {
	env := newTestEnv(t)
	ids := env.createUsers(t, 3)
	ctx := context.Background()
	env.connect(t, ids[0], ids[1])

	convID, err := env.conversations.StartOneToOne(ctx, ids[0], ids[1])
	require.NoError(t, err)

	info, err := env.conversations.GetConversationInfo(ctx, ids[0], convID)
	require.NoError(t, err)
	assert.False(t, info.IsGroup)
	assert.Equal(t, "Member 1", info.Name)

	_, err = env.conversations.GetConversationInfo(ctx, ids[2], convID)
	assertKind(t, err, util.KindNotFound, util.ReasonConversationNotFound)
	_, err = env.conversations.GetConversationInfo(ctx, ids[0], 9999)
	assertKind(t, err, util.KindNotFound, util.ReasonConversationNotFound)
}

func TestGroupMembershipAdmin(t *testing.T) {
	env := newTestEnv(t)
	ids := env.createUsers(t, 5)
	ctx := context.Background()

	conv, err := env.conversations.CreateGroup(ctx, ids[0], "Team", "", []uint{ids[1]})
	require.NoError(t, err)
	groupID := *conv.GroupID

	added, err := env.groups.AddMembers(ctx, ids[0], groupID, conv.ID, []uint{ids[1], ids[2], ids[3], ids[2]})
	require.NoError(t, err)
	assert.EqualValues(t, 2, added)

	_, err = env.groups.AddMembers(ctx, ids[1], groupID, conv.ID, []uint{ids[4]})
	assertKind(t, err, util.KindUnauthorized, util.ReasonNotAdmin)
	_, err = env.groups.AddMembers(ctx, ids[0], groupID, conv.ID+100, []uint{ids[4]})
	assertKind(t, err, util.KindNotFound, util.ReasonGroupNotFound)
	_, err = env.groups.AddMembers(ctx, ids[0], groupID+100, conv.ID, []uint{ids[4]})
	assertKind(t, err, util.KindNotFound, util.ReasonGroupNotFound)

	assertKind(t, env.groups.RemoveMember(ctx, ids[1], groupID, conv.ID, ids[0]), util.KindUnauthorized, util.ReasonNotAdmin)
	assertKind(t, env.groups.RemoveMember(ctx, ids[0], groupID, conv.ID, ids[0]), util.KindValidation, util.ReasonCannotRemoveSelf)
	assertKind(t, env.groups.RemoveMember(ctx, ids[0], groupID, conv.ID, ids[4]), util.KindNotFound, util.ReasonNotMember)
	require.NoError(t, env.groups.RemoveMember(ctx, ids[0], groupID, conv.ID, ids[2]))

	ok, err := env.conversations.IsParticipant(ctx, conv.ID, ids[0])
	require.NoError(t, err)
	assert.True(t, ok, "creator stays a participant")
	ok, err = env.conversations.IsParticipant(ctx, conv.ID, ids[2])
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListAddableMembers(t *testing.T) {
	env := newTestEnv(t)
	ids := env.createUsers(t, 4)
	ctx := context.Background()
	env.connect(t, ids[0], ids[1])
	env.connect(t, ids[2], ids[0])

	conv, err := env.conversations.CreateGroup(ctx, ids[0], "Team", "", []uint{ids[1]})
	require.NoError(t, err)

	addable, err := env.groups.ListAddableMembers(ctx, ids[0], *conv.GroupID)
	require.NoError(t, err)
	require.Len(t, addable, 1)
	assert.Equal(t, ids[2], addable[0].ID)

	_, err = env.groups.ListAddableMembers(ctx, ids[1], *conv.GroupID)
	assertKind(t, err, util.KindUnauthorized, util.ReasonNotAdmin)
}

func TestPostAndListMessages(t *testing.T) {
	env := newTestEnv(t)
	ids := env.createUsers(t, 3)
	ctx := context.Background()
	env.connect(t, ids[0], ids[1])
	convID, err := env.conversations.StartOneToOne(ctx, ids[0], ids[1])
	require.NoError(t, err)

	before := time.Now().UTC().Add(-time.Millisecond)
	msg, err := env.messages.PostMessage(ctx, ids[0], convID, "  hello  ", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Content)
	assert.False(t, msg.SentAt.Before(before))

	_, err = env.messages.PostMessage(ctx, ids[1], convID, "hi back", nil)
	require.NoError(t, err)

	msgs, err := env.messages.ListMessages(ctx, ids[1], convID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, "Member 0", msgs[0].SenderName)
	assert.Equal(t, "hi back", msgs[1].Content)

	newer, err := env.messages.ListMessages(ctx, ids[1], convID, msg.ID)
	require.NoError(t, err)
	require.Len(t, newer, 1)
	assert.Equal(t, "hi back", newer[0].Content)

	_, err = env.messages.ListMessages(ctx, ids[2], convID, 0)
	assertKind(t, err, util.KindUnauthorized, util.ReasonNotParticipant)
	_, err = env.messages.PostMessage(ctx, ids[2], convID, "intruder", nil)
	assertKind(t, err, util.KindUnauthorized, util.ReasonNotParticipant)
}

func TestPostMessageValidation(t *testing.T) {
	env := newTestEnv(t)
	ids := env.createUsers(t, 2)
	ctx := context.Background()
	env.connect(t, ids[0], ids[1])
	convID, err := env.conversations.StartOneToOne(ctx, ids[0], ids[1])
	require.NoError(t, err)

	_, err = env.messages.PostMessage(ctx, ids[0], convID, "   ", nil)
	assertKind(t, err, util.KindValidation, util.ReasonEmptyMessage)

	_, err = env.messages.PostMessage(ctx, ids[0], convID, strings.Repeat("字", 101), nil)
	assertKind(t, err, util.KindValidation, util.ReasonMessageTooLong)
	_, err = env.messages.PostMessage(ctx, ids[0], convID, strings.Repeat("字", 100), nil)
	assert.NoError(t, err)

	_, err = env.messages.PostMessage(ctx, 0, convID, "hello", nil)
	assertKind(t, err, util.KindUnauthenticated, "")
}

func TestPostMessageRejectsDisguisedUpload(t *testing.T) {
	env := newTestEnv(t)
	ids := env.createUsers(t, 2)
	ctx := context.Background()
	env.connect(t, ids[0], ids[1])
	convID, err := env.conversations.StartOneToOne(ctx, ids[0], ids[1])
	require.NoError(t, err)

	fake := []byte("this is plain text pretending to be a photo")
	_, err = env.messages.PostMessage(ctx, ids[0], convID, "", &Upload{
		Name: "holiday.jpg", Size: int64(len(fake)), Reader: bytes.NewReader(fake),
	})
	assertKind(t, err, util.KindValidation, util.ReasonInvalidFileType)
	assert.Empty(t, storedFiles(t, env.uploadDir))

	big := make([]byte, 2<<20)
	copy(big, pngBytes)
	_, err = env.messages.PostMessage(ctx, ids[0], convID, "", &Upload{
		Name: "big.png", Size: int64(len(big)), Reader: bytes.NewReader(big),
	})
	assertKind(t, err, util.KindValidation, util.ReasonFileTooLarge)
	assert.Empty(t, storedFiles(t, env.uploadDir))

	msgs, err := env.messages.ListMessages(ctx, ids[0], convID, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestPostMessageStoresAttachment(t *testing.T) {
	env := newTestEnv(t)
	ids := env.createUsers(t, 2)
	ctx := context.Background()
	env.connect(t, ids[0], ids[1])
	convID, err := env.conversations.StartOneToOne(ctx, ids[0], ids[1])
	require.NoError(t, err)

	msg, err := env.messages.PostMessage(ctx, ids[0], convID, "", &Upload{
		Name: `C:\photos\cat.gif`, Size: int64(len(pngBytes)), Reader: bytes.NewReader(pngBytes),
	})
	require.NoError(t, err)
	assert.Equal(t, "image/png", msg.FileType)
	assert.Equal(t, "cat.gif", msg.FileName)
	assert.True(t, strings.HasPrefix(msg.FilePath, "chat/"))
	assert.True(t, strings.HasSuffix(msg.FilePath, ".png"), "stored name uses the detected extension")

	stored, err := os.ReadFile(filepath.Join(env.uploadDir, msg.FilePath))
	require.NoError(t, err)
	assert.Equal(t, pngBytes, stored)

	msgs, err := env.messages.ListMessages(ctx, ids[1], convID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "/uploads/"+msg.FilePath, msgs[0].FileURL)

	// 删除消息时一并删除附件
	require.NoError(t, env.messages.DeleteMessage(ctx, ids[0], msg.ID))
	assert.Empty(t, storedFiles(t, env.uploadDir))
}

func TestPostMessageRemovesFileWhenInsertFails(t *testing.T) {
	env := newTestEnv(t)
	ids := env.createUsers(t, 2)
	ctx := context.Background()
	env.connect(t, ids[0], ids[1])
	convID, err := env.conversations.StartOneToOne(ctx, ids[0], ids[1])
	require.NoError(t, err)

	require.NoError(t, env.db.Migrator().DropTable(&model.Message{}))

	_, err = env.messages.PostMessage(ctx, ids[0], convID, "photo", &Upload{
		Name: "a.png", Size: int64(len(pngBytes)), Reader: bytes.NewReader(pngBytes),
	})
	assertKind(t, err, util.KindTransientFailure, "")
	assert.Empty(t, storedFiles(t, env.uploadDir))
}

func TestDeleteMessageOnlyBySender(t *testing.T) {
	env := newTestEnv(t)
	ids := env.createUsers(t, 2)
	ctx := context.Background()
	env.connect(t, ids[0], ids[1])
	convID, err := env.conversations.StartOneToOne(ctx, ids[0], ids[1])
	require.NoError(t, err)

	msg, err := env.messages.PostMessage(ctx, ids[0], convID, "mine", nil)
	require.NoError(t, err)

	assertKind(t, env.messages.DeleteMessage(ctx, ids[1], msg.ID), util.KindNotFound, util.ReasonMessageNotFound)
	require.NoError(t, env.messages.DeleteMessage(ctx, ids[0], msg.ID))
	assertKind(t, env.messages.DeleteMessage(ctx, ids[0], msg.ID), util.KindNotFound, util.ReasonMessageNotFound)

	msgs, err := env.messages.ListMessages(ctx, ids[1], convID, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestSetPolicyAppliesToNextPost(t *testing.T) {
	env := newTestEnv(t)
	ids := env.createUsers(t, 2)
	ctx := context.Background()
	env.connect(t, ids[0], ids[1])
	convID, err := env.conversations.StartOneToOne(ctx, ids[0], ids[1])
	require.NoError(t, err)

	policy := env.messages.Policy()
	policy.AllowedTypes = []string{"application/pdf"}
	env.messages.SetPolicy(policy)

	_, err = env.messages.PostMessage(ctx, ids[0], convID, "", &Upload{
		Name: "a.png", Size: int64(len(pngBytes)), Reader: bytes.NewReader(pngBytes),
	})
	assertKind(t, err, util.KindValidation, util.ReasonInvalidFileType)
}

func TestListConversationsOrder(t *testing.T) {
	env := newTestEnv(t)
	ids := env.createUsers(t, 4)
	ctx := context.Background()
	env.connect(t, ids[0], ids[1])
	env.connect(t, ids[0], ids[2])

	quiet, err := env.conversations.StartOneToOne(ctx, ids[0], ids[1])
	require.NoError(t, err)
	busy, err := env.conversations.StartOneToOne(ctx, ids[0], ids[2])
	require.NoError(t, err)
	group, err := env.conversations.CreateGroup(ctx, ids[0], "Team", "", []uint{ids[3]})
	require.NoError(t, err)
	newest, err := env.conversations.CreateGroup(ctx, ids[0], "Empty", "", []uint{ids[3]})
	require.NoError(t, err)

	_, err = env.messages.PostMessage(ctx, ids[0], group.ID, "first", nil)
	require.NoError(t, err)
	_, err = env.messages.PostMessage(ctx, ids[2], busy, "latest", nil)
	require.NoError(t, err)

	list, err := env.conversations.ListConversations(ctx, ids[0])
	require.NoError(t, err)
	require.Len(t, list, 4)

	order := []uint{list[0].ID, list[1].ID, list[2].ID, list[3].ID}
	assert.Equal(t, []uint{busy, group.ID, newest.ID, quiet}, order)

	assert.Equal(t, "Member 2", list[0].DisplayName)
	require.NotNil(t, list[0].LastMessage)
	assert.Equal(t, "latest", *list[0].LastMessage)
	require.NotNil(t, list[0].OtherUserID)
	assert.Equal(t, ids[2], *list[0].OtherUserID)
	assert.Equal(t, "Team", list[1].DisplayName)
	assert.Nil(t, list[2].LastMessage)

	others, err := env.conversations.ListConversations(ctx, ids[1])
	require.NoError(t, err)
	require.Len(t, others, 1)
	assert.Equal(t, quiet, others[0].ID)
	assert.Equal(t, "Member 0", others[0].DisplayName)
}

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/Divarin/Community-sub002/internal/models"
	"github.com/Divarin/Community-sub002/internal/repositories"
	"github.com/Divarin/Community-sub002/internal/telemetry"
)

// PublisherMock stands in for the amqp publisher wherever audit envelopes
// or bus events leave the process.
type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	return m.Called(ctx, routingKey, event).Error(0)
}

func (m *PublisherMock) Close() error {
	return m.Called().Error(0)
}

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) GetByChannel(ctx context.Context, channelID int) ([]models.Chat, error) {
	args := m.Called(ctx, channelID)
	var chats []models.Chat
	if val := args.Get(0); val != nil {
		chats = val.([]models.Chat)
	}
	return chats, args.Error(1)
}

func (m *ChatRepositoryMock) GetByID(ctx context.Context, id int64) (models.Chat, error) {
	args := m.Called(ctx, id)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) GetByIDs(ctx context.Context, ids []int64) ([]models.Chat, error) {
	args := m.Called(ctx, ids)
	var chats []models.Chat
	if val := args.Get(0); val != nil {
		chats = val.([]models.Chat)
	}
	return chats, args.Error(1)
}

func (m *ChatRepositoryMock) Insert(ctx context.Context, chat models.Chat) (models.Chat, error) {
	args := m.Called(ctx, chat)
	var stored models.Chat
	if val := args.Get(0); val != nil {
		stored = val.(models.Chat)
	}
	return stored, args.Error(1)
}

func (m *ChatRepositoryMock) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *ChatRepositoryMock) DeleteRange(ctx context.Context, channelID int, fromID, toID int64) error {
	args := m.Called(ctx, channelID, fromID, toID)
	return args.Error(0)
}

func (m *ChatRepositoryMock) HighestID(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type ChannelRepositoryMock struct {
	mock.Mock
}

func (m *ChannelRepositoryMock) GetAll(ctx context.Context) ([]models.Channel, error) {
	args := m.Called(ctx)
	var channels []models.Channel
	if val := args.Get(0); val != nil {
		channels = val.([]models.Channel)
	}
	return channels, args.Error(1)
}

func (m *ChannelRepositoryMock) GetByID(ctx context.Context, id int) (models.Channel, error) {
	args := m.Called(ctx, id)
	var ch models.Channel
	if val := args.Get(0); val != nil {
		ch = val.(models.Channel)
	}
	return ch, args.Error(1)
}

func (m *ChannelRepositoryMock) GetByName(ctx context.Context, name string) (models.Channel, error) {
	args := m.Called(ctx, name)
	var ch models.Channel
	if val := args.Get(0); val != nil {
		ch = val.(models.Channel)
	}
	return ch, args.Error(1)
}

func (m *ChannelRepositoryMock) Insert(ctx context.Context, ch models.Channel) (models.Channel, error) {
	args := m.Called(ctx, ch)
	var stored models.Channel
	if val := args.Get(0); val != nil {
		stored = val.(models.Channel)
	}
	return stored, args.Error(1)
}

func (m *ChannelRepositoryMock) Update(ctx context.Context, ch models.Channel) error {
	args := m.Called(ctx, ch)
	return args.Error(0)
}

type UserChannelFlagRepositoryMock struct {
	mock.Mock
}

func (m *UserChannelFlagRepositoryMock) GetByUserChannel(ctx context.Context, userID, channelID int) (models.UserChannelFlag, error) {
	args := m.Called(ctx, userID, channelID)
	var flag models.UserChannelFlag
	if val := args.Get(0); val != nil {
		flag = val.(models.UserChannelFlag)
	}
	return flag, args.Error(1)
}

func (m *UserChannelFlagRepositoryMock) GetModerators(ctx context.Context, channelID int) ([]models.UserChannelFlag, error) {
	args := m.Called(ctx, channelID)
	var flags []models.UserChannelFlag
	if val := args.Get(0); val != nil {
		flags = val.([]models.UserChannelFlag)
	}
	return flags, args.Error(1)
}

func (m *UserChannelFlagRepositoryMock) InsertOrUpdate(ctx context.Context, f models.UserChannelFlag) (models.UserChannelFlag, error) {
	args := m.Called(ctx, f)
	var stored models.UserChannelFlag
	if val := args.Get(0); val != nil {
		stored = val.(models.UserChannelFlag)
	}
	return stored, args.Error(1)
}

type MetadataRepositoryMock struct {
	mock.Mock
}

func (m *MetadataRepositoryMock) GetByUserAndType(ctx context.Context, userID int, t models.MetadataType) ([]models.Metadata, error) {
	args := m.Called(ctx, userID, t)
	var rows []models.Metadata
	if val := args.Get(0); val != nil {
		rows = val.([]models.Metadata)
	}
	return rows, args.Error(1)
}

func (m *MetadataRepositoryMock) Insert(ctx context.Context, md models.Metadata) (models.Metadata, error) {
	args := m.Called(ctx, md)
	var stored models.Metadata
	if val := args.Get(0); val != nil {
		stored = val.(models.Metadata)
	}
	return stored, args.Error(1)
}

func (m *MetadataRepositoryMock) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MetadataRepositoryMock) DeleteByUserAndType(ctx context.Context, userID int, t models.MetadataType) error {
	args := m.Called(ctx, userID, t)
	return args.Error(0)
}

type NotificationRepositoryMock struct {
	mock.Mock
}

func (m *NotificationRepositoryMock) Insert(ctx context.Context, n models.Notification) (models.Notification, error) {
	args := m.Called(ctx, n)
	var stored models.Notification
	if val := args.Get(0); val != nil {
		stored = val.(models.Notification)
	}
	return stored, args.Error(1)
}

func (m *NotificationRepositoryMock) GetUnseenByUser(ctx context.Context, userID int) ([]models.Notification, error) {
	args := m.Called(ctx, userID)
	var rows []models.Notification
	if val := args.Get(0); val != nil {
		rows = val.([]models.Notification)
	}
	return rows, args.Error(1)
}

func (m *NotificationRepositoryMock) MarkSeen(ctx context.Context, userID int) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type LogRepositoryMock struct {
	mock.Mock
}

func (m *LogRepositoryMock) Insert(ctx context.Context, e models.LogEntry) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) GetByID(ctx context.Context, id int) (models.User, error) {
	args := m.Called(ctx, id)
	var u models.User
	if val := args.Get(0); val != nil {
		u = val.(models.User)
	}
	return u, args.Error(1)
}

func (m *UserRepositoryMock) GetByIDs(ctx context.Context, ids []int) ([]models.User, error) {
	args := m.Called(ctx, ids)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

func (m *UserRepositoryMock) GetByName(ctx context.Context, name string) (models.User, error) {
	args := m.Called(ctx, name)
	var u models.User
	if val := args.Get(0); val != nil {
		u = val.(models.User)
	}
	return u, args.Error(1)
}

func (m *UserRepositoryMock) Update(ctx context.Context, u models.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

var _ repositories.ChatRepository = (*ChatRepositoryMock)(nil)
var _ repositories.ChannelRepository = (*ChannelRepositoryMock)(nil)
var _ repositories.UserChannelFlagRepository = (*UserChannelFlagRepositoryMock)(nil)
var _ repositories.MetadataRepository = (*MetadataRepositoryMock)(nil)
var _ repositories.NotificationRepository = (*NotificationRepositoryMock)(nil)
var _ repositories.LogRepository = (*LogRepositoryMock)(nil)
var _ repositories.UserRepository = (*UserRepositoryMock)(nil)
var _ telemetry.Publisher = (*PublisherMock)(nil)

package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/anoncommunity/internal/common"
	sc "github.com/dmitrijs2005/anoncommunity/internal/server/config"
	"github.com/dmitrijs2005/anoncommunity/internal/server/models"
	"github.com/dmitrijs2005/anoncommunity/internal/server/repositories/repomanager"
	"github.com/google/uuid"
	"github.com/thejerf/abtime"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const avatarUploadExpiry = 15 * time.Minute

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
)

// AvatarUpload tells the client where to PUT its avatar image.
type AvatarUpload struct {
	Key       string
	UploadURL string
	AvatarURL string
	ExpiresAt time.Time
}

// AvatarService hands out presigned upload URLs for user avatars and
// points the account at the new object.
type AvatarService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
	clock       abtime.AbstractTime
}

func NewAvatarService(db *sql.DB, m repomanager.RepositoryManager, cfg *sc.Config, clock abtime.AbstractTime) *AvatarService {
	return &AvatarService{db: db, repomanager: m, config: cfg, clock: clock}
}

func avatarKey(userID int64) string {
	return fmt.Sprintf("avatars/%d/%s", userID, uuid.New())
}

func (s *AvatarService) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return newS3PresignClient(client), nil
}

// PublicURL is where an uploaded object is readable, path style.
func (s *AvatarService) PublicURL(key string) string {
	return strings.TrimRight(s.config.S3BaseEndpoint, "/") + "/" + s.config.S3Bucket + "/" + key
}

// PresignUpload creates an upload slot for current and stores the object's
// public URL as the account avatar.
func (s *AvatarService) PresignUpload(ctx context.Context, current *models.User) (*AvatarUpload, error) {
	if current == nil {
		return nil, common.ErrUnauthenticated
	}

	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("presign client: %w", err)
	}

	bucket := s.config.S3Bucket
	key := avatarKey(current.ID)

	req, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(avatarUploadExpiry))
	if err != nil {
		return nil, fmt.Errorf("presign put: %w", err)
	}

	avatarURL := s.PublicURL(key)
	if err := s.repomanager.Users(s.db).UpdateAvatarURL(ctx, current.ID, avatarURL); err != nil {
		return nil, fmt.Errorf("update avatar: %w", err)
	}
	current.AvatarURL = avatarURL

	return &AvatarUpload{
		Key:       key,
		UploadURL: req.URL,
		AvatarURL: avatarURL,
		ExpiresAt: s.clock.Now().Add(avatarUploadExpiry),
	}, nil
}

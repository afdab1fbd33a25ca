// Package image は記事画像のダウンロード、サムネイル生成、GridFSへの
// 保存を提供する。
//
// オリジナル画像は取得したフォーマットのまま保存し、サムネイルは
// 最大枠に収まるよう縮小してJPEGで再エンコードする。画像とサムネイルは
// GridFSのメタデータで相互にリンクされる。
package image

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/hitoshi/newsportal/internal/metrics"
	"github.com/hitoshi/newsportal/internal/security"
)

// ファイル名のタイムスタンプ形式（UTC）。
const filenameTimestampLayout = "20060102150405"

// サムネイルJPEGのエンコード品質。
const thumbnailJPEGQuality = 85

// Store は画像の保存と取得のインターフェースを定義する。
type Store interface {
	// IngestFromURL は指定URLの画像をダウンロードして保存し、
	// サムネイルを同期生成する。オリジナル画像IDとサムネイルIDを返す。
	IngestFromURL(ctx context.Context, articleID, imageURL string) (imageID, thumbnailID string, err error)

	// GetBytes は指定IDの画像データとMIMEタイプを取得する。
	// 画像が存在しない場合（不正なIDを含む）はnilを返し、エラーにしない。
	// エラーはストレージとの通信失敗に限る。
	GetBytes(ctx context.Context, id string) ([]byte, string, error)

	// GetThumbnailID は指定されたオリジナル画像にリンクされた
	// サムネイルのIDを返す。不正なIDや未知のID、サムネイルのない画像は
	// 空文字列を返す。
	GetThumbnailID(ctx context.Context, id string) string

	// Delete は指定IDのオリジナル画像と、リンクされたサムネイルを削除する。
	// サムネイルを先に削除する。削除の失敗はログに記録して続行し、
	// 呼び出し側に伝播しない。
	Delete(ctx context.Context, id string)
}

// fileMetadata はGridFSのメタデータドキュメント。
type fileMetadata struct {
	ContentType string    `bson:"contentType"`
	Type        string    `bson:"type"` // original または thumbnail
	ArticleID   string    `bson:"articleId"`
	OriginalURL string    `bson:"originalUrl,omitempty"`
	Width       int       `bson:"width"`
	Height      int       `bson:"height"`
	UploadDate  time.Time `bson:"uploadDate"`
	ThumbnailID string    `bson:"thumbnailId,omitempty"`
	OriginalID  string    `bson:"originalId,omitempty"`
}

// gridFSFile はGridFSのfilesコレクションのドキュメント。
type gridFSFile struct {
	ID       primitive.ObjectID `bson:"_id"`
	Filename string             `bson:"filename"`
	Metadata fileMetadata       `bson:"metadata"`
}

// GridFSStore はMongoDB GridFSを使用したStoreの実装。
type GridFSStore struct {
	bucket      *gridfs.Bucket
	ssrfGuard   security.SSRFGuardService
	timeout     time.Duration
	maxSize     int64
	userAgent   string
	thumbWidth  int
	thumbHeight int
	collector   *metrics.Collector
}

// NewGridFSStore はGridFSStoreの新しいインスタンスを生成する。
// collectorはnil可。
func NewGridFSStore(db *mongo.Database, ssrfGuard security.SSRFGuardService, timeout time.Duration, maxSize int64, userAgent string, thumbWidth, thumbHeight int, collector *metrics.Collector) (*GridFSStore, error) {
	bucket, err := gridfs.NewBucket(db)
	if err != nil {
		return nil, fmt.Errorf("GridFSバケットの生成に失敗しました: %w", err)
	}
	return &GridFSStore{
		bucket:      bucket,
		ssrfGuard:   ssrfGuard,
		timeout:     timeout,
		maxSize:     maxSize,
		userAgent:   userAgent,
		thumbWidth:  thumbWidth,
		thumbHeight: thumbHeight,
		collector:   collector,
	}, nil
}

// IngestFromURL は画像をダウンロードし、オリジナルとサムネイルを保存する。
// ダウンロード失敗、非2xxレスポンス、デコード失敗はエラーを返す。
// 記事の取り込みを妨げないよう、呼び出し側でのベストエフォート扱いを想定している。
func (s *GridFSStore) IngestFromURL(ctx context.Context, articleID, imageURL string) (string, string, error) {
	data, err := s.download(ctx, imageURL)
	if err != nil {
		s.collector.RecordImageUpload(false)
		return "", "", err
	}

	decoded, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		s.collector.RecordImageUpload(false)
		return "", "", fmt.Errorf("画像のデコードに失敗しました: %w", err)
	}

	now := time.Now().UTC()
	timestamp := now.Format(filenameTimestampLayout)
	bounds := decoded.Bounds()

	filename := fmt.Sprintf("news_%s_%s%s", articleID, timestamp, extensionForFormat(format))
	originalID, err := s.bucket.UploadFromStream(filename, bytes.NewReader(data),
		options.GridFSUpload().SetMetadata(fileMetadata{
			ContentType: contentTypeForFormat(format),
			Type:        "original",
			ArticleID:   articleID,
			OriginalURL: imageURL,
			Width:       bounds.Dx(),
			Height:      bounds.Dy(),
			UploadDate:  now,
		}))
	if err != nil {
		s.collector.RecordImageUpload(false)
		return "", "", fmt.Errorf("オリジナル画像の保存に失敗しました: %w", err)
	}
	s.collector.RecordImageUpload(true)

	thumbnailID, err := s.generateThumbnail(ctx, articleID, originalID, decoded, timestamp, now)
	if err != nil {
		// オリジナルのみでも記事は成立するため、サムネイル失敗は警告に留める
		slog.Warn("サムネイルの生成に失敗しました",
			"article_id", articleID,
			"image_id", originalID.Hex(),
			"error", err)
		return originalID.Hex(), "", nil
	}

	return originalID.Hex(), thumbnailID.Hex(), nil
}

// download はSSRF防止クライアントで画像をダウンロードする。
func (s *GridFSStore) download(ctx context.Context, imageURL string) ([]byte, error) {
	if err := s.ssrfGuard.ValidateURL(imageURL); err != nil {
		return nil, fmt.Errorf("画像URLの検証に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエストの生成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	client := s.ssrfGuard.NewSafeClient(s.timeout, s.maxSize)
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("画像のダウンロードに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("画像のダウンロードに失敗しました: status=%d url=%s", resp.StatusCode, imageURL)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxSize))
	if err != nil {
		return nil, fmt.Errorf("画像ボディの読み取りに失敗しました: %w", err)
	}
	return data, nil
}

// generateThumbnail は縮小サムネイルをJPEGで保存し、オリジナル画像の
// メタデータにサムネイルIDを書き込む。
func (s *GridFSStore) generateThumbnail(ctx context.Context, articleID string, originalID primitive.ObjectID, src image.Image, timestamp string, now time.Time) (primitive.ObjectID, error) {
	bounds := src.Bounds()
	width, height := FitWithin(bounds.Dx(), bounds.Dy(), s.thumbWidth, s.thumbHeight)

	scaled := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: thumbnailJPEGQuality}); err != nil {
		return primitive.NilObjectID, fmt.Errorf("サムネイルのエンコードに失敗しました: %w", err)
	}

	filename := fmt.Sprintf("thumb_%s_%s.jpg", articleID, timestamp)
	thumbnailID, err := s.bucket.UploadFromStream(filename, &buf,
		options.GridFSUpload().SetMetadata(fileMetadata{
			ContentType: "image/jpeg",
			Type:        "thumbnail",
			ArticleID:   articleID,
			Width:       width,
			Height:      height,
			UploadDate:  now,
			OriginalID:  originalID.Hex(),
		}))
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("サムネイルの保存に失敗しました: %w", err)
	}

	// オリジナル側からサムネイルを辿れるようメタデータを更新する
	_, err = s.bucket.GetFilesCollection().UpdateOne(ctx,
		bson.M{"_id": originalID},
		bson.M{"$set": bson.M{"metadata.thumbnailId": thumbnailID.Hex()}})
	if err != nil {
		slog.Warn("オリジナル画像のメタデータ更新に失敗しました",
			"image_id", originalID.Hex(),
			"thumbnail_id", thumbnailID.Hex(),
			"error", err)
	}

	return thumbnailID, nil
}

// GetBytes は指定IDの画像データとMIMEタイプを取得する。
// 不正なIDや存在しない画像はnilを返す。エラーは通信失敗に限る。
func (s *GridFSStore) GetBytes(ctx context.Context, id string) ([]byte, string, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, "", nil
	}

	var file gridFSFile
	err = s.bucket.GetFilesCollection().FindOne(ctx, bson.M{"_id": objectID}).Decode(&file)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("画像メタデータの取得に失敗しました: %w", err)
	}

	var buf bytes.Buffer
	if _, err := s.bucket.DownloadToStream(objectID, &buf); err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("画像データの取得に失敗しました: %w", err)
	}

	contentType := file.Metadata.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return buf.Bytes(), contentType, nil
}

// GetThumbnailID は指定画像のメタデータからサムネイルIDを取得する。
// 不正なIDや未知のID、サムネイル未生成の画像は空文字列を返す。
func (s *GridFSStore) GetThumbnailID(ctx context.Context, id string) string {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ""
	}

	var file gridFSFile
	err = s.bucket.GetFilesCollection().FindOne(ctx, bson.M{"_id": objectID}).Decode(&file)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			slog.Warn("画像メタデータの取得に失敗しました", "image_id", id, "error", err)
		}
		return ""
	}
	return file.Metadata.ThumbnailID
}

// Delete は指定IDのオリジナル画像とリンクされたサムネイルを削除する。
// サムネイルを先に削除し、いずれの失敗もログに記録して続行する。
func (s *GridFSStore) Delete(ctx context.Context, id string) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		slog.Warn("不正な画像IDのため削除をスキップします", "image_id", id, "error", err)
		return
	}

	if linked := s.GetThumbnailID(ctx, id); linked != "" {
		if thumbID, err := primitive.ObjectIDFromHex(linked); err == nil {
			if err := s.bucket.Delete(thumbID); err != nil {
				slog.Warn("サムネイルの削除に失敗しました",
					"thumbnail_id", linked,
					"error", err)
			}
		}
	}

	if err := s.bucket.Delete(objectID); err != nil {
		slog.Warn("画像の削除に失敗しました", "image_id", id, "error", err)
	}
}

package usecase

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"swapit/internal/domain/entity"
	"swapit/internal/domain/repository"
	"swapit/pkg/errors"
	"swapit/pkg/geo"
	"swapit/pkg/logger"
)

// MediaSource is one media object to upload for an item.
type MediaSource struct {
	Reader      io.Reader
	ContentType string
}

// ItemLifecycle orchestrates the multi-step item writes: media uploads
// to object storage plus the fan-out to the item record and the owner's
// userItems index. Uploads completed before a failure are compensated,
// so a failed call leaves neither orphaned objects nor a partial item.
type ItemLifecycle struct {
	store   repository.RemoteStore
	objects repository.ObjectStore
}

func NewItemLifecycle(store repository.RemoteStore, objects repository.ObjectStore) *ItemLifecycle {
	return &ItemLifecycle{store: store, objects: objects}
}

type AddItemInput struct {
	Title    string
	Desc     string
	Category string
	Location entity.ItemLocation
	Media    []MediaSource
}

// AddItem creates a listing. The item id is reserved before any upload
// so object paths can be namespaced under it; media is uploaded in input
// order; the record and the owner's index entry commit in one batch.
func (uc *ItemLifecycle) AddItem(ctx context.Context, uid string, input AddItemInput) (*entity.Item, error) {
	if strings.TrimSpace(input.Title) == "" ||
		strings.TrimSpace(input.Desc) == "" ||
		strings.TrimSpace(input.Category) == "" {
		return nil, errors.BadRequest("Title, description and category are required", nil)
	}
	if len(input.Media) == 0 {
		return nil, errors.BadRequest("At least one image is required", nil)
	}

	itemID, err := uc.store.NewChildID(ctx, repository.ItemsPath())
	if err != nil {
		return nil, errors.Internal("Failed to reserve item id", err)
	}

	var rb rollbackLog
	urls, err := uc.uploadMedia(ctx, &rb, uid, itemID, input.Media)
	if err != nil {
		rb.run(ctx)
		return nil, err
	}

	nickname := uc.resolveNickname(ctx, uid)
	now := time.Now().UnixMilli()

	item := entity.Item{
		ID:            itemID,
		Title:         input.Title,
		Desc:          input.Desc,
		Category:      input.Category,
		CreatedAt:     now,
		UpdatedAt:     now,
		OwnerUID:      uid,
		OwnerNickname: nickname,
		Status:        entity.ItemStatusActive,
		ImagesCount:   len(urls),
		ImageURLs:     urls,
		Location:      &input.Location,
		Geo:           &entity.Geo{Geohash: geo.Encode(input.Location.Lat, input.Location.Lng, geo.DefaultPrecision)},
	}

	updates := map[string]interface{}{
		repository.ItemPath(itemID):          item,
		repository.UserItemPath(uid, itemID): summarize(item),
	}
	if err := uc.store.BatchWrite(ctx, updates); err != nil {
		rb.run(ctx)
		return nil, errors.Internal("Failed to write item", err)
	}

	return &item, nil
}

type UpdateItemInput struct {
	Title            string
	Desc             string
	Category         string
	Location         entity.ItemLocation
	KeptImageURLs    []string
	RemovedImageURLs []string
	NewMedia         []MediaSource
}

// UpdateItem rewrites a listing's mutable fields. New media follows the
// same rollback discipline as AddItem; removed media is deleted
// best-effort, since a leaked object is safer than dangling state. The
// final URL order is kept URLs followed by new uploads, de-duplicated.
func (uc *ItemLifecycle) UpdateItem(ctx context.Context, uid, itemID string, input UpdateItemInput) (*entity.Item, error) {
	if strings.TrimSpace(input.Title) == "" ||
		strings.TrimSpace(input.Desc) == "" ||
		strings.TrimSpace(input.Category) == "" {
		return nil, errors.BadRequest("Title, description and category are required", nil)
	}
	if len(input.KeptImageURLs) == 0 && len(input.NewMedia) == 0 {
		return nil, errors.BadRequest("An item must keep at least one image", nil)
	}

	var existing entity.Item
	found, err := uc.store.Get(ctx, repository.ItemPath(itemID), &existing)
	if err != nil {
		return nil, errors.Internal("Failed to read item", err)
	}
	if !found {
		return nil, errors.NotFound("Item", nil)
	}
	if existing.OwnerUID != uid {
		return nil, errors.Forbidden("You don't have permission to update this item", nil)
	}

	var rb rollbackLog
	newURLs, err := uc.uploadMedia(ctx, &rb, uid, itemID, input.NewMedia)
	if err != nil {
		rb.run(ctx)
		return nil, err
	}

	// Removal wins when a URL appears in both lists, so the final list
	// never references an object that was just deleted.
	removed := make(map[string]struct{}, len(input.RemovedImageURLs))
	for _, url := range input.RemovedImageURLs {
		removed[url] = struct{}{}
	}
	kept := make([]string, 0, len(input.KeptImageURLs))
	for _, url := range input.KeptImageURLs {
		if _, ok := removed[url]; ok {
			continue
		}
		kept = append(kept, url)
	}
	finalURLs := dedupe(append(kept, newURLs...))
	if len(finalURLs) == 0 {
		rb.run(ctx)
		return nil, errors.BadRequest("An item must keep at least one image", nil)
	}

	for _, url := range dedupe(input.RemovedImageURLs) {
		if err := uc.objects.Delete(ctx, url); err != nil {
			logger.Warn("Failed to delete removed item image %s: %v", url, err)
		}
	}

	nickname := uc.resolveNickname(ctx, uid)
	now := time.Now().UnixMilli()
	createdAt := existing.CreatedAt
	if createdAt <= 0 {
		createdAt = now
	}

	updated := existing
	updated.ID = itemID
	updated.Title = input.Title
	updated.Desc = input.Desc
	updated.Category = input.Category
	updated.CreatedAt = createdAt
	updated.UpdatedAt = now
	updated.OwnerNickname = nickname
	updated.ImagesCount = len(finalURLs)
	updated.ImageURLs = finalURLs
	updated.Location = &input.Location
	updated.Geo = &entity.Geo{Geohash: geo.Encode(input.Location.Lat, input.Location.Lng, geo.DefaultPrecision)}

	itemPath := repository.ItemPath(itemID)
	updates := map[string]interface{}{
		itemPath + "/title":                  updated.Title,
		itemPath + "/desc":                   updated.Desc,
		itemPath + "/category":               updated.Category,
		itemPath + "/location":               updated.Location,
		itemPath + "/geo":                    updated.Geo,
		itemPath + "/updatedAt":              updated.UpdatedAt,
		itemPath + "/imagesCount":            updated.ImagesCount,
		itemPath + "/imageUrls":              updated.ImageURLs,
		itemPath + "/ownerNickname":          updated.OwnerNickname,
		repository.UserItemPath(uid, itemID): summarize(updated),
	}
	if err := uc.store.BatchWrite(ctx, updates); err != nil {
		rb.run(ctx)
		return nil, errors.Internal("Failed to update item", err)
	}

	return &updated, nil
}

// DeleteItem removes the listing: every referenced media object is
// deleted best-effort, then the record and the owner's index entry go in
// one batch.
func (uc *ItemLifecycle) DeleteItem(ctx context.Context, uid, itemID string) error {
	var item entity.Item
	found, err := uc.store.Get(ctx, repository.ItemPath(itemID), &item)
	if err != nil {
		return errors.Internal("Failed to read item", err)
	}
	if !found {
		return errors.NotFound("Item", nil)
	}
	if item.OwnerUID != uid {
		return errors.Forbidden("You don't have permission to delete this item", nil)
	}

	for _, url := range item.ImageURLs {
		if err := uc.objects.Delete(ctx, url); err != nil {
			logger.Warn("Failed to delete item image %s: %v", url, err)
		}
	}

	updates := map[string]interface{}{
		repository.ItemPath(itemID):          nil,
		repository.UserItemPath(uid, itemID): nil,
	}
	if err := uc.store.BatchWrite(ctx, updates); err != nil {
		return errors.Internal("Failed to delete item", err)
	}
	return nil
}

// GetItem reads a single item record.
func (uc *ItemLifecycle) GetItem(ctx context.Context, itemID string) (*entity.Item, error) {
	var item entity.Item
	found, err := uc.store.Get(ctx, repository.ItemPath(itemID), &item)
	if err != nil {
		return nil, errors.Internal("Failed to read item", err)
	}
	if !found {
		return nil, errors.NotFound("Item", nil)
	}
	item.ID = itemID
	return &item, nil
}

// MyItems lists the owner's item summaries, newest first.
func (uc *ItemLifecycle) MyItems(ctx context.Context, uid string) ([]entity.ItemSummary, error) {
	var byID map[string]entity.ItemSummary
	if _, err := uc.store.Get(ctx, repository.UserItemsPath(uid), &byID); err != nil {
		return nil, errors.Internal("Failed to read item index", err)
	}

	out := make([]entity.ItemSummary, 0, len(byID))
	for itemID, summary := range byID {
		summary.ItemID = itemID
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ItemID < out[j].ItemID
	})
	return out, nil
}

// uploadMedia uploads sources in order, registering each success on the
// rollback log. The caller runs the log on any downstream failure.
func (uc *ItemLifecycle) uploadMedia(ctx context.Context, rb *rollbackLog, uid, itemID string, media []MediaSource) ([]string, error) {
	urls := make([]string, 0, len(media))
	for i, src := range media {
		path := fmt.Sprintf("items/%s/%s/%s%s", uid, itemID, uuid.New().String(), extensionFor(src.ContentType))
		url, err := uc.objects.Put(ctx, path, src.Reader, src.ContentType)
		if err != nil {
			return nil, errors.Internal(fmt.Sprintf("Failed to upload image %d", i+1), err)
		}
		uploaded := url
		rb.add("delete uploaded image", func(ctx context.Context) error {
			return uc.objects.Delete(ctx, uploaded)
		})
		urls = append(urls, url)
	}
	return urls, nil
}

func (uc *ItemLifecycle) resolveNickname(ctx context.Context, uid string) string {
	var nickname string
	found, err := uc.store.Get(ctx, repository.UserNicknamePath(uid), &nickname)
	if err != nil || !found || strings.TrimSpace(nickname) == "" {
		if len(uid) > 6 {
			return uid[:6]
		}
		return uid
	}
	return nickname
}

func summarize(item entity.Item) entity.ItemSummary {
	locationLabel := ""
	if item.Location != nil {
		locationLabel = item.Location.Label
	}
	firstImage := ""
	if len(item.ImageURLs) > 0 {
		firstImage = item.ImageURLs[0]
	}
	return entity.ItemSummary{
		ItemID:        item.ID,
		Title:         item.Title,
		Category:      item.Category,
		CreatedAt:     item.CreatedAt,
		OwnerNickname: item.OwnerNickname,
		LocationLabel: locationLabel,
		FirstImageURL: firstImage,
	}
}

func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, url := range urls {
		if _, ok := seen[url]; ok {
			continue
		}
		seen[url] = struct{}{}
		out = append(out, url)
	}
	return out
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}

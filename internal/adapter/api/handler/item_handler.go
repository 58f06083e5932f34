package handler

import (
	"fmt"
	"mime/multipart"
	"strconv"

	"github.com/labstack/echo/v4"

	"swapit/internal/domain/entity"
	"swapit/internal/usecase"
	"swapit/pkg/errors"
	"swapit/pkg/response"
)

type ItemHandler struct {
	itemLifecycle *usecase.ItemLifecycle
	maxImageSize  int64
}

func NewItemHandler(itemLifecycle *usecase.ItemLifecycle) *ItemHandler {
	return &ItemHandler{
		itemLifecycle: itemLifecycle,
		maxImageSize:  5 * 1024 * 1024,
	}
}

// CreateItem accepts a multipart form: title, desc, category, lat, lng,
// locationLabel plus one or more "images" files.
func (h *ItemHandler) CreateItem(c echo.Context) error {
	uid := c.Get("uid").(string)

	location, err := parseLocation(c)
	if err != nil {
		return response.Error(c, err)
	}

	media, closeMedia, err := h.openImages(c)
	if err != nil {
		return response.Error(c, err)
	}
	defer closeMedia()

	item, err := h.itemLifecycle.AddItem(c.Request().Context(), uid, usecase.AddItemInput{
		Title:    c.FormValue("title"),
		Desc:     c.FormValue("desc"),
		Category: c.FormValue("category"),
		Location: location,
		Media:    media,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, item)
}

// UpdateItem accepts the same form as CreateItem, plus repeated
// keptImageUrls / removedImageUrls values. New "images" files are
// appended after the kept ones.
func (h *ItemHandler) UpdateItem(c echo.Context) error {
	uid := c.Get("uid").(string)
	id := c.Param("id")

	location, err := parseLocation(c)
	if err != nil {
		return response.Error(c, err)
	}

	form, err := c.MultipartForm()
	if err != nil {
		return response.Error(c, errors.BadRequest("Invalid multipart form", err))
	}

	media, closeMedia, err := h.openImages(c)
	if err != nil {
		return response.Error(c, err)
	}
	defer closeMedia()

	item, err := h.itemLifecycle.UpdateItem(c.Request().Context(), uid, id, usecase.UpdateItemInput{
		Title:            c.FormValue("title"),
		Desc:             c.FormValue("desc"),
		Category:         c.FormValue("category"),
		Location:         location,
		KeptImageURLs:    form.Value["keptImageUrls"],
		RemovedImageURLs: form.Value["removedImageUrls"],
		NewMedia:         media,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, item)
}

func (h *ItemHandler) DeleteItem(c echo.Context) error {
	uid := c.Get("uid").(string)

	if err := h.itemLifecycle.DeleteItem(c.Request().Context(), uid, c.Param("id")); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{"status": "deleted"})
}

func (h *ItemHandler) GetItem(c echo.Context) error {
	item, err := h.itemLifecycle.GetItem(c.Request().Context(), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, item)
}

func (h *ItemHandler) MyItems(c echo.Context) error {
	uid := c.Get("uid").(string)

	items, err := h.itemLifecycle.MyItems(c.Request().Context(), uid)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, items)
}

func parseLocation(c echo.Context) (entity.ItemLocation, error) {
	lat, err := strconv.ParseFloat(c.FormValue("lat"), 64)
	if err != nil {
		return entity.ItemLocation{}, errors.BadRequest("Invalid latitude", err)
	}
	lng, err := strconv.ParseFloat(c.FormValue("lng"), 64)
	if err != nil {
		return entity.ItemLocation{}, errors.BadRequest("Invalid longitude", err)
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return entity.ItemLocation{}, errors.BadRequest("Coordinates out of range", nil)
	}

	return entity.ItemLocation{
		Lat:   lat,
		Lng:   lng,
		Label: c.FormValue("locationLabel"),
	}, nil
}

// openImages opens the uploaded "images" files in form order. The
// returned closer releases every opened file.
func (h *ItemHandler) openImages(c echo.Context) ([]usecase.MediaSource, func(), error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, nil, errors.BadRequest("Invalid multipart form", err)
	}

	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}

	files := form.File["images"]
	media := make([]usecase.MediaSource, 0, len(files))
	for _, fh := range files {
		if fh.Size > h.maxImageSize {
			closeAll()
			return nil, nil, errors.BadRequest(fmt.Sprintf("Image exceeds maximum allowed size (%dMB)", h.maxImageSize/(1024*1024)), nil)
		}

		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, nil, errors.Internal("Failed to open uploaded image", err)
		}
		opened = append(opened, f)
		media = append(media, usecase.MediaSource{
			Reader:      f,
			ContentType: fh.Header.Get("Content-Type"),
		})
	}

	return media, closeAll, nil
}

package httpx

import (
	"errors"
	"strconv"
	"time"

	"github.com/bhavnindersingh/RecipeManager/internal/apperr"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
	dateLayout      = "2006-01-02"
)

// ErrorHandler renders every error as {"error": msg}. Unknown errors are
// logged and hidden behind a generic message.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
		}
		if ae, ok := apperr.As(err); ok {
			body := fiber.Map{"error": ae.Message}
			if ae.Redirect != "" {
				body["redirect"] = ae.Redirect
			}
			return c.Status(Status(ae.Kind)).JSON(body)
		}
		log.Error("unexpected error", zap.String("path", c.Path()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unexpected server error",
		})
	}
}

func Status(k apperr.Kind) int {
	switch k {
	case apperr.KindValidation:
		return fiber.StatusBadRequest
	case apperr.KindNotFound:
		return fiber.StatusNotFound
	case apperr.KindConflict:
		return fiber.StatusConflict
	case apperr.KindUnauthorized:
		return fiber.StatusUnauthorized
	case apperr.KindForbidden:
		return fiber.StatusForbidden
	case apperr.KindRateLimited:
		return fiber.StatusTooManyRequests
	default:
		return fiber.StatusInternalServerError
	}
}

// Fail passes user-facing errors through untouched and turns anything else
// into a logged 500 carrying msg ("Failed to ...").
func Fail(log *zap.Logger, err error, msg string) error {
	if _, ok := apperr.As(err); ok {
		return err
	}
	log.Error(msg, zap.Error(err))
	return fiber.NewError(fiber.StatusInternalServerError, msg)
}

type Page struct {
	Page int `json:"page"`
	Size int `json:"page_size"`
}

func (p Page) Offset() int { return (p.Page - 1) * p.Size }

// PageFrom reads ?page=&page_size=, clamping to sane bounds.
func PageFrom(c *fiber.Ctx) Page {
	p := Page{Page: c.QueryInt("page", 1), Size: c.QueryInt("page_size", DefaultPageSize)}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

type Paged[T any] struct {
	Data       []T   `json:"data"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

func NewPaged[T any](data []T, total int64, p Page) Paged[T] {
	if data == nil {
		data = []T{}
	}
	pages := int((total + int64(p.Size) - 1) / int64(p.Size))
	return Paged[T]{Data: data, Total: total, Page: p.Page, PageSize: p.Size, TotalPages: pages}
}

// DateRange parses ?date_from=YYYY-MM-DD&date_to=YYYY-MM-DD. date_to covers
// the whole day.
func DateRange(c *fiber.Ctx) (from, to *time.Time, err error) {
	if s := c.Query("date_from"); s != "" {
		d, perr := time.ParseInLocation(dateLayout, s, time.Local)
		if perr != nil {
			return nil, nil, apperr.Validation("date_from must be YYYY-MM-DD")
		}
		from = &d
	}
	if s := c.Query("date_to"); s != "" {
		d, perr := time.ParseInLocation(dateLayout, s, time.Local)
		if perr != nil {
			return nil, nil, apperr.Validation("date_to must be YYYY-MM-DD")
		}
		d = d.Add(24*time.Hour - time.Nanosecond)
		to = &d
	}
	return from, to, nil
}

// ParamID reads a positive numeric route parameter.
func ParamID(c *fiber.Ctx, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || v == 0 {
		return 0, apperr.Validation("%s is not a valid id", name)
	}
	return uint(v), nil
}

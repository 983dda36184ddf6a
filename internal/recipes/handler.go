package recipes

import (
	"strconv"

	"github.com/bhavnindersingh/RecipeManager/internal/apperr"
	"github.com/bhavnindersingh/RecipeManager/internal/auth"
	"github.com/bhavnindersingh/RecipeManager/internal/httpx"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// GET /api/recipes?category=&search=&production=true&page=&page_size=
func ListRecipesHandler(svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page := httpx.PageFrom(c)
		f := Filter{Category: c.Query("category"), Search: c.Query("search"), Page: page}
		if v := c.Query("production"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return apperr.Validation("production must be true or false")
			}
			f.Production = &b
		}
		list, total, err := svc.List(c.UserContext(), f)
		if err != nil {
			return httpx.Fail(log, err, "Failed to list recipes")
		}
		return c.JSON(httpx.NewPaged(list, total, page))
	}
}

// GET /api/recipes/:id
func GetRecipeHandler(svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		v, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return httpx.Fail(log, err, "Failed to load recipe")
		}
		return c.JSON(v)
	}
}

// POST /api/recipes
func CreateRecipeHandler(svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body Input
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("Invalid request body")
		}
		v, err := svc.Create(c.UserContext(), auth.CurrentActor(c), body)
		if err != nil {
			return httpx.Fail(log, err, "Failed to create recipe")
		}
		return c.Status(fiber.StatusCreated).JSON(v)
	}
}

// PUT /api/recipes/:id
func UpdateRecipeHandler(svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body Input
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("Invalid request body")
		}
		v, err := svc.Update(c.UserContext(), auth.CurrentActor(c), id, body)
		if err != nil {
			return httpx.Fail(log, err, "Failed to update recipe")
		}
		return c.JSON(v)
	}
}

// DELETE /api/recipes/:id
func DeleteRecipeHandler(svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		if err := svc.Delete(c.UserContext(), auth.CurrentActor(c), id); err != nil {
			return httpx.Fail(log, err, "Failed to delete recipe")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GET /api/recipes/sku-preview?category=
func PreviewSKUHandler(svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := svc.PreviewSKU(c.UserContext(), c.Query("category"))
		if err != nil {
			return httpx.Fail(log, err, "Failed to preview SKU")
		}
		return c.JSON(p)
	}
}

// GET /api/recipes/sales-data
func SalesDataHandler(svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		data, err := svc.SalesData(c.UserContext())
		if err != nil {
			return httpx.Fail(log, err, "Failed to load sales data")
		}
		out := make([]SalesStats, 0, len(data))
		for _, s := range data {
			out = append(out, s)
		}
		return c.JSON(out)
	}
}

// POST /api/recipes/:id/images/:kind (multipart, field "image")
func UploadImageHandler(svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		fh, err := c.FormFile("image")
		if err != nil {
			return apperr.Validation("Upload an image in the 'image' field")
		}
		f, err := fh.Open()
		if err != nil {
			return httpx.Fail(log, err, "Failed to read upload")
		}
		defer f.Close()

		v, err := svc.SetImage(c.UserContext(), id, ImageKind(c.Params("kind")),
			fh.Filename, fh.Header.Get("Content-Type"), fh.Size, f)
		if err != nil {
			return httpx.Fail(log, err, "Failed to upload image")
		}
		return c.JSON(v)
	}
}

// DELETE /api/recipes/:id/images/:kind
func RemoveImageHandler(svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		v, err := svc.RemoveImage(c.UserContext(), id, ImageKind(c.Params("kind")))
		if err != nil {
			return httpx.Fail(log, err, "Failed to remove image")
		}
		return c.JSON(v)
	}
}

package inventory

import (
	"github.com/bhavnindersingh/RecipeManager/internal/apperr"
	"github.com/bhavnindersingh/RecipeManager/internal/auth"
	"github.com/bhavnindersingh/RecipeManager/internal/httpx"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// GET /api/ingredients?category=&search=&sort=name&order=asc&page=&page_size=
func ListIngredientsHandler(svc *IngredientService, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page := httpx.PageFrom(c)
		items, total, err := svc.List(c.UserContext(), IngredientFilter{
			Category: c.Query("category"),
			Search:   c.Query("search"),
			Sort:     c.Query("sort", "name"),
			Desc:     c.Query("order") == "desc",
			Page:     page,
		})
		if err != nil {
			return httpx.Fail(log, err, "Failed to list ingredients")
		}
		return c.JSON(httpx.NewPaged(items, total, page))
	}
}

// GET /api/ingredients/:id
func GetIngredientHandler(svc *IngredientService, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		ing, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return httpx.Fail(log, err, "Failed to load ingredient")
		}
		return c.JSON(ing)
	}
}

// POST /api/ingredients
func CreateIngredientHandler(svc *IngredientService, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body IngredientInput
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("Invalid request body")
		}
		ing, err := svc.Create(c.UserContext(), auth.CurrentActor(c), body)
		if err != nil {
			return httpx.Fail(log, err, "Failed to create ingredient")
		}
		return c.Status(fiber.StatusCreated).JSON(ing)
	}
}

// PUT /api/ingredients/:id
func UpdateIngredientHandler(svc *IngredientService, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body IngredientInput
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("Invalid request body")
		}
		ing, err := svc.Update(c.UserContext(), auth.CurrentActor(c), id, body)
		if err != nil {
			return httpx.Fail(log, err, "Failed to update ingredient")
		}
		return c.JSON(ing)
	}
}

// DELETE /api/ingredients/:id
func DeleteIngredientHandler(svc *IngredientService, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		if err := svc.Delete(c.UserContext(), auth.CurrentActor(c), id); err != nil {
			return httpx.Fail(log, err, "Failed to delete ingredient")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GET /api/ingredients/catalogue
func CatalogueHandler(svc *IngredientService, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cat, err := svc.Catalogue(c.UserContext())
		if err != nil {
			return httpx.Fail(log, err, "Failed to load catalogue")
		}
		return c.JSON(cat)
	}
}

// POST /api/ingredients/import (multipart, field "file")
func ImportIngredientsHandler(svc *IngredientService, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return apperr.Validation("Upload an .xlsx file in the 'file' field")
		}
		f, err := fh.Open()
		if err != nil {
			return httpx.Fail(log, err, "Failed to read upload")
		}
		defer f.Close()

		rows, err := ParseIngredientSheet(f)
		if err != nil {
			return apperr.Validation("Could not read spreadsheet: %v", err)
		}
		return c.JSON(svc.Import(c.UserContext(), auth.CurrentActor(c), rows))
	}
}

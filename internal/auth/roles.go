package auth

import "github.com/bhavnindersingh/RecipeManager/internal/models"

type Screen string

const (
	ScreenDashboard   Screen = "dashboard"
	ScreenRecipes     Screen = "recipes"
	ScreenIngredients Screen = "ingredients"
	ScreenStock       Screen = "stock"
	ScreenPOS         Screen = "pos"
	ScreenServer      Screen = "server"
	ScreenKDS         Screen = "kds"
	ScreenTables      Screen = "tables"
	ScreenAnalytics   Screen = "analytics"
	ScreenData        Screen = "data"
	ScreenStaff       Screen = "staff"

	ScreenLogin Screen = "login"
)

var allScreens = []Screen{
	ScreenDashboard, ScreenRecipes, ScreenIngredients, ScreenStock, ScreenPOS,
	ScreenServer, ScreenKDS, ScreenTables, ScreenAnalytics, ScreenData, ScreenStaff,
}

var roleScreens = map[models.UserRole][]Screen{
	models.RoleAdmin:        allScreens,
	models.RoleServer:       {ScreenPOS, ScreenServer, ScreenKDS},
	models.RoleKitchen:      {ScreenKDS},
	models.RoleStoreManager: {ScreenIngredients, ScreenStock},
}

var defaultScreens = map[models.UserRole]Screen{
	models.RoleAdmin:        ScreenDashboard,
	models.RoleServer:       ScreenPOS,
	models.RoleKitchen:      ScreenKDS,
	models.RoleStoreManager: ScreenIngredients,
}

// ScreensFor lists the screens a role may open. Unknown roles get none.
func ScreensFor(role models.UserRole) []Screen {
	s := roleScreens[role]
	out := make([]Screen, len(s))
	copy(out, s)
	return out
}

// DefaultScreen is where a role lands after login and after an access
// failure. Unknown roles are sent back to the login screen.
func DefaultScreen(role models.UserRole) Screen {
	if s, ok := defaultScreens[role]; ok {
		return s
	}
	return ScreenLogin
}

func CanAccess(role models.UserRole, screen Screen) bool {
	for _, s := range roleScreens[role] {
		if s == screen {
			return true
		}
	}
	return false
}

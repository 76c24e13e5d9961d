package ksk

import "github.com/andybalholm/cascadia"

// CSS selectors for the Sparkasse online-banking portal. The portal renders
// the same structure for every locale, so controls are located by their
// structural role rather than by label text.
const (
	// Login page
	SelectorLoginForm     = "div.loginlogout form"
	SelectorUsernameInput = "input[type=text]:not([size='1'])" // size=1 inputs are honeypots
	SelectorPINInput      = "input[type=password]"
	SelectorLoginSubmit   = "input[type=submit], button[type=submit], button:not([type])"

	// Login error, rendered on the page the login form posts to
	SelectorLoginError        = "div.loginlogout div.msgerror"
	SelectorLoginErrorMessage = "ul li"

	// Balances page (Finanzstatus)
	SelectorAccountsCaption    = "caption#kontoTable"
	SelectorAccountRows        = "tbody tr"
	SelectorAccountIdentifier  = ".finaccount .iban"
	SelectorAccountBalance     = ".balance span:not(.balance-predecimal):not(.balance-decimal)"
	SelectorTransactionsButton = "td:nth-of-type(5) div:nth-of-type(1) input[type=submit]"

	// Transactions page (Umsaetze)
	SelectorDateRange       = "#zeitraumKalender"
	SelectorDateRangeInputs = "input[type=text]"
	SelectorExportCSVCAMT   = "#exportGroup input[type=submit][value*='CSV-CAMT']"

	// Logout control, present on every authenticated page
	SelectorLogout       = ".loginlogout .logout"
	SelectorLogoutButton = ".logout input[type=submit]"
)

var formMatcher = cascadia.MustCompile("form")

package config

import (
	"cmp"
	"errors"
	"io/fs"
	"maps"
	"slices"

	"github.com/spf13/viper"
)

// SetDefaults registers the built-in values. Locator lists are written in the
// string form understood by page.Parse.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("timeout", "10m")

	// -- Site --
	v.SetDefault("site.base_url", "https://www.amazon.com")
	v.SetDefault("site.login_url", "https://www.amazon.com/ap/signin?openid.pape.max_auth_age=0"+
		"&openid.return_to=https%3A%2F%2Fwww.amazon.com%2F%3Fref_%3Dnav_signin"+
		"&openid.identity=http%3A%2F%2Fspecs.openid.net%2Fauth%2F2.0%2Fidentifier_select"+
		"&openid.assoc_handle=usflex&openid.mode=checkid_setup"+
		"&openid.claimed_id=http%3A%2F%2Fspecs.openid.net%2Fauth%2F2.0%2Fidentifier_select"+
		"&openid.ns=http%3A%2F%2Fspecs.openid.net%2Fauth%2F2.0")
	v.SetDefault("site.history_url", "https://www.amazon.com/gp/css/order-history")
	v.SetDefault("site.year_filter_url", "https://www.amazon.com/your-orders/orders?timeFilter=year-{year}")
	v.SetDefault("site.auth_path_fragments", []string{"/ap/signin", "/ap/mfa", "/ap/cvf", "/ap/challenge", "/ax/claim", "/ap/forgotpassword"})
	v.SetDefault("site.second_factor_path_fragments", []string{"/ap/mfa", "/ap/cvf", "/ap/challenge"})
	v.SetDefault("site.history_url_patterns", []string{`/gp/css/order-history`, `/your-orders/orders`, `/gp/your-account/order-history`})

	// -- Selectors --
	v.SetDefault("selectors.email_field", []string{"#ap_email", "#ap_email_login", "input[name='email']", "input[type='email']"})
	v.SetDefault("selectors.continue_button", []string{"#continue", "input#continue", "span#continue input", "text=button|Continue"})
	v.SetDefault("selectors.password_field", []string{"#ap_password", "input[name='password']", "input[type='password']"})
	v.SetDefault("selectors.sign_in_button", []string{"#signInSubmit", "input#signInSubmit", "text=button|Sign in", "input[type='submit']"})
	v.SetDefault("selectors.invalid_identifier_alert", []string{"#auth-email-invalid-claim-alert", "#auth-error-message-box", "text=We cannot find an account with that"})
	v.SetDefault("selectors.incorrect_password_alert", []string{"#auth-password-invalid-password-alert", "text=Your password is incorrect"})
	v.SetDefault("selectors.alert", []string{"#auth-error-message-box", "#auth-warning-message-box", ".a-alert-error", ".a-alert-warning", "div[role='alert']"})
	v.SetDefault("selectors.code_field", []string{"#auth-mfa-otpcode", "#cvf-input-code", "input[name='otpCode']", "input[name='code']", "input[autocomplete='one-time-code']"})
	v.SetDefault("selectors.code_submit_button", []string{"#auth-signin-button", "#cvf-submit-otp-button input", "input[aria-labelledby='cvf-submit-otp-button-announce']", "text=button|Verify", "input[type='submit']"})
	v.SetDefault("selectors.post_login_landmarks", []string{"#nav-link-accountList", "#nav-orders", "#nav-logo-sprites"})
	v.SetDefault("selectors.login_landmarks", []string{"#ap_email", "#ap_password", "#authportal-main-section"})
	v.SetDefault("selectors.orders_nav", []string{"#nav-orders", "a[href*='order-history']", "text=a|Returns & Orders", "text=a|Your Orders"})
	v.SetDefault("selectors.order_page_landmarks", []string{"#ordersContainer", ".your-orders-content-container", "#time-filter", ".order-card", "text=h1|Your Orders"})
	v.SetDefault("selectors.empty_history", []string{"text=You have not placed any orders", "text=looks like you haven't placed an order"})

	// -- Extraction --
	v.SetDefault("extraction.order_cards", []string{".order-card", ".js-order-card", ".a-box-group.order", "div.order"})
	v.SetDefault("extraction.header_values", []string{
		".order-header .a-color-secondary.value",
		".order-header__header-list-item .a-size-base",
		".order-info .a-color-secondary.value",
	})
	v.SetDefault("extraction.date_position", 0)
	v.SetDefault("extraction.total_position", 1)
	v.SetDefault("extraction.delivery_boxes", []string{".delivery-box", ".shipment"})
	v.SetDefault("extraction.product_title", []string{".yohtmlc-product-title", ".yohtmlc-item a.a-link-normal", "a.a-link-normal[href*='/dp/']", "a[href*='/gp/product/']"})
	v.SetDefault("extraction.digital_title", []string{".yohtmlc-digital-title", "a[href*='/gp/digital/']", "a[href*='/gp/video/']"})
	v.SetDefault("extraction.product_links", []string{"a[href*='/dp/']", "a[href*='/gp/product/']"})
	v.SetDefault("extraction.price_nodes", []string{".a-price .a-offscreen", ".a-color-price", ".a-price", "[class*='price']"})
	v.SetDefault("extraction.price_ancestor_depth", 4)

	// -- Auth --
	v.SetDefault("auth.username_attempts", 3)
	v.SetDefault("auth.password_attempts", 3)
	v.SetDefault("auth.code_attempts", 3)
	v.SetDefault("auth.outer_attempts", 2)
	v.SetDefault("auth.poll_interval", "500ms")
	v.SetDefault("auth.field_wait_rounds", 20)
	v.SetDefault("auth.navigation_timeout", "15s")
	v.SetDefault("auth.identifier_failure_keywords", []string{"invalid", "cannot", "problem", "find"})
	v.SetDefault("auth.second_factor_alert_keywords", []string{"code", "verification", "otp", "wait", "seconds", "too many", "try again later"})
	v.SetDefault("auth.second_factor_title_keywords", []string{"verification", "two-step", "otp", "authentication"})
	v.SetDefault("auth.second_factor_phrases", []string{
		"verification code", "two-step verification", "otp", "security code",
		"one time password", "one-time password", "enter the code",
	})

	// -- Harvest --
	v.SetDefault("harvest.quota", 10)
	v.SetDefault("harvest.max_years", 5)
	v.SetDefault("harvest.poll_interval", "1s")
	v.SetDefault("harvest.nav_poll_rounds", 10)
	v.SetDefault("harvest.year_poll_rounds", 8)

	// -- Browser --
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.fresh", false)
	v.SetDefault("browser.user_data_dir", "~/.config/orderscout/profile")
	v.SetDefault("browser.window_width", 1280)
	v.SetDefault("browser.window_height", 850)
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.action_timeout", "10s")
	v.SetDefault("browser.snapshot_dir", "snapshots")
	v.SetDefault("browser.snapshots", true)

	// -- Output --
	v.SetDefault("output.file", "orders.json")
	v.SetDefault("output.console", true)
	v.SetDefault("output.table", true)

	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "orderscout")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- IMAP --
	v.SetDefault("imap.enabled", false)
	v.SetDefault("imap.server", "")
	v.SetDefault("imap.username", "")
	v.SetDefault("imap.tls", true)
	v.SetDefault("imap.subject", "Your Amazon verification code")
	v.SetDefault("imap.start_delimiter", "")
	v.SetDefault("imap.end_delimiter", "")
	v.SetDefault("imap.code_pattern", `\b\d{6}\b`)
	v.SetDefault("imap.wait", "90s")
	v.SetDefault("imap.poll_interval", "5s")

	// -- Influx --
	v.SetDefault("influx.enabled", false)
	v.SetDefault("influx.url", "")
	v.SetDefault("influx.org", "")
	v.SetDefault("influx.bucket", "")
	v.SetDefault("influx.measurement", "purchase")
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func sortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	return slices.Sorted(maps.Keys(m))
}

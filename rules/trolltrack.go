//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// NoStdlibLog flags the standard log package inside internal packages.
// Services log through internal/logger so module levels and the JSON file
// output apply.
//
// Old pattern:
//
//	log.Printf("weather request failed: %v", err)
//
// New pattern:
//
//	c.log.Warn("weather request failed", logger.Error(err))
func NoStdlibLog(m dsl.Matcher) {
	m.Import("log")

	m.Match(
		`log.Printf($*_)`,
		`log.Println($*_)`,
		`log.Print($*_)`,
		`log.Fatalf($*_)`,
		`log.Fatal($*_)`,
	).
		Where(m.File().PkgPath.Matches(`/internal/`)).
		Report(`use the module logger from internal/logger instead of the log package`)
}

// TimeDateTimeConstants suggests the named layouts for the common
// date and time formats.
//
//	t.Format("2006-01-02")  ->  t.Format(time.DateOnly)
func TimeDateTimeConstants(m dsl.Matcher) {
	m.Match(`$t.Format("2006-01-02 15:04:05")`).
		Report(`use $t.Format(time.DateTime)`).
		Suggest(`$t.Format(time.DateTime)`)

	m.Match(`$t.Format("2006-01-02")`).
		Report(`use $t.Format(time.DateOnly)`).
		Suggest(`$t.Format(time.DateOnly)`)

	m.Match(`time.Parse("2006-01-02", $s)`).
		Report(`use time.Parse(time.DateOnly, $s)`).
		Suggest(`time.Parse(time.DateOnly, $s)`)

	m.Match(`time.ParseInLocation("2006-01-02", $s, $loc)`).
		Report(`use time.ParseInLocation(time.DateOnly, $s, $loc)`).
		Suggest(`time.ParseInLocation(time.DateOnly, $s, $loc)`)
}

// HTTPNoBody flags nil request bodies on outgoing API calls.
//
//	http.NewRequestWithContext(ctx, http.MethodGet, url, nil)  ->  ..., http.NoBody)
func HTTPNoBody(m dsl.Matcher) {
	m.Match(`http.NewRequestWithContext($ctx, $method, $url, nil)`).
		Report(`use http.NoBody instead of nil for requests without a body`).
		Suggest(`http.NewRequestWithContext($ctx, $method, $url, http.NoBody)`)
}

// ErrorCategoryRequired flags errors built without a category in the
// packages whose errors reach the API and the pages; the HTTP status and
// the user message are chosen from the category.
//
//	errors.Newf("city not found").Component("weather").Build()
func ErrorCategoryRequired(m dsl.Matcher) {
	m.Import("github.com/trolltrack/trolltrack/internal/errors")

	m.Match(
		`errors.Newf($*_).Component($c).Build()`,
		`errors.New($_).Component($c).Build()`,
	).
		Where(m.File().PkgPath.Matches(`/internal/(weather|location|datastore|api|viewmodel)$`)).
		Report(`set a Category so the error maps to an HTTP status and a user message`)
}

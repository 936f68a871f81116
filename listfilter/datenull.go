package listfilter

import "time"

// DateOrNull returns a factory for a date filter that also offers "No date"
// and "Has date" choices. The empty choice reads "All items".
//
// Unlike MakeRange the windows are computed whenever a filter is built, so
// "Today" follows the clock.
func DateOrNull(opts ...Option) Factory {
	o := buildOptions(opts)
	return func(field Field, params map[string]string) ListFilter {
		f := newLinkFilter(field, params, o.title)

		now := o.now()
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		tomorrow := today.AddDate(0, 0, 1)
		monthStart := today.AddDate(0, 0, 1-today.Day())
		nextMonth := monthStart.AddDate(0, 1, 0)
		yearStart := time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, today.Location())
		nextYear := yearStart.AddDate(1, 0, 0)

		since, until := field.Path+suffixGte, field.Path+suffixLt
		window := func(from, to time.Time) map[string]string {
			return map[string]string{since: from.Format(dateLayout), until: to.Format(dateLayout)}
		}

		f.links = []link{
			{display: "All items", params: map[string]string{}},
			{display: "Today", params: window(today, tomorrow)},
			{display: "Past 7 days", params: window(today.AddDate(0, 0, -7), tomorrow)},
			{display: "This month", params: window(monthStart, nextMonth)},
			{display: "This year", params: window(yearStart, nextYear)},
			{display: "No date", params: map[string]string{field.Path + suffixIsNull: "True"}},
			{display: "Has date", params: map[string]string{field.Path + suffixIsNull: "False"}},
		}
		return f
	}
}

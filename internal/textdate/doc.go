// Package textdate recognizes calendar dates embedded in free-form text.
//
// The textdate package extracts publication dates from link text, filenames,
// and URL paths as published by government data portals. It understands five
// notations tried in a fixed precedence order: month name plus year
// ("February 2026"), numeric year-month ("2026-02"), federal fiscal year
// quarters ("FY2025_Q3", "Q3 FY2025"), calendar year quarters ("2026Q2"),
// and bare years ("2026"). Fiscal quarters resolve to the quarter's end
// date; everything else resolves to the period's first day.
package textdate

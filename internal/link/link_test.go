package link

import "testing"

func TestIsDownloadable(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want bool
	}{
		{
			name: "PDF file",
			url:  "https://example.gov/files/report.pdf",
			want: true,
		},
		{
			name: "Excel xlsx",
			url:  "https://example.gov/data/LCA_Disclosure_Data_FY2025_Q3.xlsx",
			want: true,
		},
		{
			name: "Uppercase extension",
			url:  "https://example.gov/files/REPORT.PDF",
			want: true,
		},
		{
			name: "CSV with query string",
			url:  "https://example.gov/export/warn.csv?download=1",
			want: true,
		},
		{
			name: "HTML page",
			url:  "https://example.gov/visa-bulletin-for-february-2026.html",
			want: false,
		},
		{
			name: "No extension",
			url:  "https://example.gov/data/tools",
			want: false,
		},
		{
			name: "Unparseable URL",
			url:  "://not-a-url",
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDownloadable(tt.url); got != tt.want {
				t.Errorf("IsDownloadable(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestGuessExtension(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		contentType string
		want        string
	}{
		{
			name: "Extension from URL",
			url:  "https://example.gov/files/report.pdf",
			want: ".pdf",
		},
		{
			name:        "URL extension beats content type",
			url:         "https://example.gov/files/data.csv",
			contentType: "application/pdf",
			want:        ".csv",
		},
		{
			name:        "Excel content type",
			url:         "https://example.gov/download",
			contentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			want:        ".xlsx",
		},
		{
			name:        "Content type with charset suffix",
			url:         "https://example.gov/download",
			contentType: "text/csv; charset=utf-8",
			want:        ".csv",
		},
		{
			name: "Unknown falls back to bin",
			url:  "https://example.gov/download",
			want: ".bin",
		},
		{
			name:        "Unknown content type falls back to bin",
			url:         "https://example.gov/download",
			contentType: "application/octet-stream",
			want:        ".bin",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GuessExtension(tt.url, tt.contentType); got != tt.want {
				t.Errorf("GuessExtension(%q, %q) = %q, want %q", tt.url, tt.contentType, got, tt.want)
			}
		})
	}
}

func TestFilename(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{
			name: "Simple filename",
			url:  "https://example.gov/files/report.pdf",
			want: "report.pdf",
		},
		{
			name: "URL-encoded filename",
			url:  "https://example.gov/files/March%202017%20-%20IV%20Issuances.pdf",
			want: "March 2017 - IV Issuances.pdf",
		},
		{
			name: "Trailing slash uses last path segment",
			url:  "https://example.gov/files/",
			want: "files",
		},
		{
			name: "Root path has no filename",
			url:  "https://example.gov/",
			want: "",
		},
		{
			name: "Bare host has no filename",
			url:  "https://example.gov",
			want: "",
		},
		{
			name: "Query string ignored",
			url:  "https://example.gov/data.xlsx?version=2",
			want: "data.xlsx",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Filename(tt.url); got != tt.want {
				t.Errorf("Filename(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

// Package templates renders the HTML shell of the workbench. The shell
// lists the modules and drives the JSON API from the browser.
//
// The components live in shell.templ; regenerate shell_templ.go with
// `templ generate` after editing it.
package templates

// ModuleLink is one entry of the module navigation.
type ModuleLink struct {
	Key         string
	Title       string
	Description string
	Available   bool
}

// DatasetSummary describes the loaded dataset in the header.
type DatasetSummary struct {
	FileName string
	FileType string
	Rows     int
	Cols     int
}

// PageParams holds everything the shell needs.
type PageParams struct {
	Title   string
	Modules []ModuleLink
	Dataset *DatasetSummary
	Formats []string
}

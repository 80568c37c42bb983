// Package story defines the illustrated story content model and its JSON file
// store.
//
// A story is a sequence of pages; each page carries its text and one or two
// image slots (main and, optionally, secondary) with the prompt used to
// generate the illustration. Text and prompts keep both the ingested original
// and the editable current value. Stories live at
// <library>/<book_rel_path>/<NN>.json and are written atomically.
package story

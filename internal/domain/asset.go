package domain

import "time"

// ReferenceType is the document type of a reference entry.
const ReferenceType = "reference"

// Reference points at another document by ID. Weak references do not block
// deletion of their target and may dangle.
type Reference struct {
	Ref  string `json:"_ref"`
	Type string `json:"_type"`
	Weak bool   `json:"_weak,omitempty"`
}

// NewWeakReference returns a weak reference to the given tag ID.
func NewWeakReference(tagID string) Reference {
	return Reference{Ref: tagID, Type: ReferenceType, Weak: true}
}

// MediaOptions holds plugin-owned fields on an asset.
type MediaOptions struct {
	Tags []Reference `json:"tags,omitempty"`
}

// AssetOptions is the "opt" object on an asset document.
type AssetOptions struct {
	Media MediaOptions `json:"media"`
}

// Asset is an image or file asset. Only the fields read by tag
// reconciliation are modelled.
type Asset struct {
	CreatedAt        time.Time    `json:"_createdAt"`
	UpdatedAt        time.Time    `json:"_updatedAt"`
	ID               string       `json:"_id"`
	Type             string       `json:"_type"`
	Rev              string       `json:"_rev"`
	Alt              string       `json:"alt,omitempty"`
	Description      string       `json:"description,omitempty"`
	OriginalFilename string       `json:"originalFilename,omitempty"`
	Title            string       `json:"title,omitempty"`
	Attribution      string       `json:"attribution,omitempty"`
	Opt              AssetOptions `json:"opt"`

	// Tags holds free-text tag names not yet resolved to references.
	Tags []string `json:"tags,omitempty"`
}

// TagReferences returns the asset's existing tag references.
func (a Asset) TagReferences() []Reference {
	return a.Opt.Media.Tags
}

// AssetFormData is the set of fields written by an asset update.
type AssetFormData struct {
	Alt              string       `json:"alt"`
	Description      string       `json:"description"`
	OriginalFilename string       `json:"originalFilename"`
	Title            string       `json:"title"`
	Attribution      string       `json:"attribution"`
	Opt              AssetOptions `json:"opt"`
}

// NewAssetFormData copies the editable fields of an asset and replaces its
// tag references with refs.
func NewAssetFormData(asset Asset, refs []Reference) AssetFormData {
	tags := make([]Reference, len(refs))
	copy(tags, refs)

	return AssetFormData{
		Alt:              asset.Alt,
		Description:      asset.Description,
		OriginalFilename: asset.OriginalFilename,
		Title:            asset.Title,
		Attribution:      asset.Attribution,
		Opt:              AssetOptions{Media: MediaOptions{Tags: tags}},
	}
}

// Fields returns the form data as a field map for a set patch.
func (f AssetFormData) Fields() map[string]any {
	tags := make([]any, 0, len(f.Opt.Media.Tags))
	for _, ref := range f.Opt.Media.Tags {
		tags = append(tags, map[string]any{
			"_ref":  ref.Ref,
			"_type": ref.Type,
			"_weak": ref.Weak,
		})
	}

	return map[string]any{
		"alt":              f.Alt,
		"description":      f.Description,
		"originalFilename": f.OriginalFilename,
		"title":            f.Title,
		"attribution":      f.Attribution,
		"opt.media.tags":   tags,
	}
}

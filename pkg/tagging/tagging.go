// Package tagging indexes free-text tags per listing.
package tagging

import (
	"context"
	"fmt"
	"strings"

	"foodshare/pkg/domain"
)

// TagSets is the persistence the index needs.
type TagSets interface {
	GetTagSet(ctx context.Context, listingID string) (domain.TagSet, bool, error)
	SaveTagSet(ctx context.Context, t domain.TagSet) error
	ListTagSets(ctx context.Context) ([]domain.TagSet, error)
	DeleteTagSet(ctx context.Context, listingID string) error
}

// Index manages lowercase tag sets.
type Index struct {
	sets TagSets
}

func New(sets TagSets) *Index {
	return &Index{sets: sets}
}

func normalize(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// AddTag adds tag to listing, creating the set on first use.
func (x *Index) AddTag(ctx context.Context, listing, tag string) (domain.TagSet, error) {
	tag = normalize(tag)
	if tag == "" {
		return domain.TagSet{}, domain.BadValues("Tag must be non-empty!")
	}
	// commas separate tags in search queries
	if strings.Contains(tag, ",") {
		return domain.TagSet{}, domain.BadValues("Tag must not contain commas!")
	}
	set, ok, err := x.sets.GetTagSet(ctx, listing)
	if err != nil {
		return domain.TagSet{}, fmt.Errorf("get tags: %w", err)
	}
	if !ok {
		set = domain.TagSet{ID: domain.NewID(), ListingID: listing}
	}
	for _, have := range set.Tags {
		if have == tag {
			return domain.TagSet{}, domain.NotAllowed("Tag %q already exists for item %s", tag, listing).WithCode(domain.CodeDuplicateTag)
		}
	}
	set.Tags = append(set.Tags, tag)
	if err := x.sets.SaveTagSet(ctx, set); err != nil {
		return domain.TagSet{}, fmt.Errorf("save tags: %w", err)
	}
	return set, nil
}

// DeleteTag removes tag from listing.
func (x *Index) DeleteTag(ctx context.Context, listing, tag string) (domain.TagSet, error) {
	tag = normalize(tag)
	set, ok, err := x.sets.GetTagSet(ctx, listing)
	if err != nil {
		return domain.TagSet{}, fmt.Errorf("get tags: %w", err)
	}
	if !ok {
		return domain.TagSet{}, domain.NotFound("Item with ID %s has no tags.", listing)
	}
	kept := make([]string, 0, len(set.Tags))
	for _, have := range set.Tags {
		if have != tag {
			kept = append(kept, have)
		}
	}
	if len(kept) == len(set.Tags) {
		return domain.TagSet{}, domain.NotFound("Tag %q does not exist for item %s", tag, listing)
	}
	set.Tags = kept
	if err := x.sets.SaveTagSet(ctx, set); err != nil {
		return domain.TagSet{}, fmt.Errorf("save tags: %w", err)
	}
	return set, nil
}

// Tags returns the tag set of listing, if it has one.
func (x *Index) Tags(ctx context.Context, listing string) (domain.TagSet, bool, error) {
	set, ok, err := x.sets.GetTagSet(ctx, listing)
	if err != nil {
		return domain.TagSet{}, false, fmt.Errorf("get tags: %w", err)
	}
	return set, ok, nil
}

func (x *Index) DeleteByListing(ctx context.Context, listing string) error {
	if err := x.sets.DeleteTagSet(ctx, listing); err != nil {
		return fmt.Errorf("delete tags: %w", err)
	}
	return nil
}

// ItemsWithTags returns every tag set containing all of tags.
func (x *Index) ItemsWithTags(ctx context.Context, tags []string) ([]domain.TagSet, error) {
	want := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = normalize(tag); tag != "" {
			want = append(want, tag)
		}
	}
	if len(want) == 0 {
		return nil, domain.BadValues("No tags provided to search for.").WithCode(domain.CodeAmbiguousQuery)
	}
	all, err := x.sets.ListTagSets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	out := make([]domain.TagSet, 0)
	for _, set := range all {
		if set.HasAll(want) {
			out = append(out, set)
		}
	}
	return out, nil
}

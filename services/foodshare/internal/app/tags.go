package app

import (
	"context"

	"foodshare/pkg/domain"
	"foodshare/pkg/events"
)

// ListingTags returns the tags of a live listing. A listing that never had a
// tag yields an empty set rather than an error.
func (a *App) ListingTags(ctx context.Context, listing string) (domain.TagSet, error) {
	if err := a.posts.AssertNotExpired(ctx, listing); err != nil {
		return domain.TagSet{}, err
	}
	set, ok, err := a.tags.Tags(ctx, listing)
	if err != nil {
		return domain.TagSet{}, err
	}
	if !ok {
		return domain.TagSet{ListingID: listing, Tags: []string{}}, nil
	}
	return set, nil
}

func (a *App) ItemsWithTags(ctx context.Context, tags []string) ([]domain.TagSet, error) {
	return a.tags.ItemsWithTags(ctx, tags)
}

func (a *App) AddTag(ctx context.Context, c Caller, listing, tag string) (domain.TagSet, error) {
	if err := a.assertTaggable(ctx, c, listing); err != nil {
		return domain.TagSet{}, err
	}
	set, err := a.tags.AddTag(ctx, listing, tag)
	if err != nil {
		return domain.TagSet{}, err
	}
	a.publish(ctx, events.TagAdded, listing, c.UserID, map[string]string{"tag": tag})
	return set, nil
}

func (a *App) DeleteTag(ctx context.Context, c Caller, listing, tag string) (domain.TagSet, error) {
	if err := a.assertTaggable(ctx, c, listing); err != nil {
		return domain.TagSet{}, err
	}
	set, err := a.tags.DeleteTag(ctx, listing, tag)
	if err != nil {
		return domain.TagSet{}, err
	}
	a.publish(ctx, events.TagDeleted, listing, c.UserID, map[string]string{"tag": tag})
	return set, nil
}

// assertTaggable requires a Donor who wrote the listing, which must not have expired.
func (a *App) assertTaggable(ctx context.Context, c Caller, listing string) error {
	if err := a.users.AssertIsRole(ctx, c.UserID, domain.RoleDonor); err != nil {
		return err
	}
	if err := a.posts.AssertAuthorIsUser(ctx, listing, c.UserID); err != nil {
		return err
	}
	return a.posts.AssertNotExpired(ctx, listing)
}

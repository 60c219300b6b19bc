package app

import (
	"context"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"foodshare/pkg/domain"
	"foodshare/pkg/events"
	"foodshare/pkg/posting"
)

// NewPost is the input of CreatePost.
type NewPost struct {
	FoodName       string
	ExpirationTime time.Time
	Quantity       int
	Tags           []string
}

// ListPosts lists every listing, or only those by the named author.
func (a *App) ListPosts(ctx context.Context, author string) ([]PostView, error) {
	var (
		listings []domain.Listing
		err      error
	)
	if author != "" {
		u, lookupErr := a.users.GetByUsername(ctx, author)
		if lookupErr != nil {
			return nil, lookupErr
		}
		listings, err = a.posts.ListByAuthor(ctx, u.ID)
	} else {
		listings, err = a.posts.List(ctx)
	}
	if err != nil {
		return nil, err
	}
	return a.postViews(ctx, listings)
}

func (a *App) UserPosts(ctx context.Context, c Caller) ([]PostView, error) {
	listings, err := a.posts.ListByAuthor(ctx, c.UserID)
	if err != nil {
		return nil, err
	}
	return a.postViews(ctx, listings)
}

// CreatePost creates a listing for a Donor and then attaches its tags.
// Duplicate tags in the input are collapsed. A failing tag leaves the
// listing and the tags added before it in place.
func (a *App) CreatePost(ctx context.Context, c Caller, in NewPost) (PostView, error) {
	if err := a.users.AssertIsRole(ctx, c.UserID, domain.RoleDonor); err != nil {
		return PostView{}, err
	}
	l, err := a.posts.Create(ctx, c.UserID, in.FoodName, in.ExpirationTime, in.Quantity)
	if err != nil {
		return PostView{}, err
	}
	a.publish(ctx, events.ListingCreated, l.ID, c.UserID, map[string]string{
		"foodName": l.FoodName,
		"quantity": strconv.Itoa(l.Quantity),
	})

	var tags []string
	seen := make(map[string]struct{}, len(in.Tags))
	for _, raw := range in.Tags {
		tag := strings.ToLower(strings.TrimSpace(raw))
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		set, err := a.tags.AddTag(ctx, l.ID, tag)
		if err != nil {
			return PostView{}, err
		}
		tags = set.Tags
		a.publish(ctx, events.TagAdded, l.ID, c.UserID, map[string]string{"tag": tag})
	}

	view, err := a.postView(ctx, l)
	if err != nil {
		return PostView{}, err
	}
	view.Tags = tags
	return view, nil
}

// UpdatePost applies patch to a listing the calling Donor wrote.
func (a *App) UpdatePost(ctx context.Context, c Caller, id string, patch posting.Patch) (PostView, error) {
	if err := a.users.AssertIsRole(ctx, c.UserID, domain.RoleDonor); err != nil {
		return PostView{}, err
	}
	if err := a.posts.AssertAuthorIsUser(ctx, id, c.UserID); err != nil {
		return PostView{}, err
	}
	l, err := a.posts.Update(ctx, id, patch)
	if err != nil {
		return PostView{}, err
	}
	a.publish(ctx, events.ListingUpdated, l.ID, c.UserID, nil)
	return a.postView(ctx, l)
}

// DeletePost removes a listing the calling Donor wrote, together with its
// claim, that claim's deliveries and its tag set, in that order.
func (a *App) DeletePost(ctx context.Context, c Caller, id string) error {
	if err := a.users.AssertIsRole(ctx, c.UserID, domain.RoleDonor); err != nil {
		return err
	}
	if err := a.posts.AssertAuthorIsUser(ctx, id, c.UserID); err != nil {
		return err
	}
	attrs := map[string]string{}
	claim, claimed, err := a.claims.DeleteByListing(ctx, id)
	if err != nil {
		return err
	}
	if claimed {
		attrs["claim"] = claim.ID
		if err := a.deliveries.DeleteByClaim(ctx, claim.ID); err != nil {
			return err
		}
	}
	if err := a.tags.DeleteByListing(ctx, id); err != nil {
		return err
	}
	if err := a.posts.Delete(ctx, id); err != nil {
		return err
	}
	a.publish(ctx, events.ListingDeleted, id, c.UserID, attrs)
	return nil
}

// NonExpiredPosts lists listings whose expiration is still ahead.
func (a *App) NonExpiredPosts(ctx context.Context) ([]PostView, error) {
	return a.filterPosts(ctx, nil)
}

// NonExpiredUnclaimedPosts lists live listings nobody has claimed yet.
func (a *App) NonExpiredUnclaimedPosts(ctx context.Context) ([]PostView, error) {
	claimed := false
	return a.filterPosts(ctx, &claimed)
}

// NonExpiredClaimedPosts lists live listings that already carry a claim.
func (a *App) NonExpiredClaimedPosts(ctx context.Context) ([]PostView, error) {
	claimed := true
	return a.filterPosts(ctx, &claimed)
}

// filterPosts keeps non-expired listings and, when wantClaimed is set, only
// those whose claimed state matches. Claim lookups run concurrently.
func (a *App) filterPosts(ctx context.Context, wantClaimed *bool) ([]PostView, error) {
	all, err := a.posts.List(ctx)
	if err != nil {
		return nil, err
	}
	live := make([]domain.Listing, 0, len(all))
	for _, l := range all {
		if !a.posts.Expired(l) {
			live = append(live, l)
		}
	}
	if wantClaimed != nil {
		keep := make([]bool, len(live))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(a.fanout)
		for i, l := range live {
			g.Go(func() error {
				claimed, err := a.claims.IsListingClaimed(gctx, l.ID)
				if err != nil {
					return err
				}
				keep[i] = claimed == *wantClaimed
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		filtered := live[:0]
		for i, l := range live {
			if keep[i] {
				filtered = append(filtered, l)
			}
		}
		live = filtered
	}
	return a.postViews(ctx, live)
}

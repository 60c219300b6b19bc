package app

import (
	"context"

	"golang.org/x/sync/errgroup"

	"foodshare/pkg/domain"
)

// PostView is a listing with its author resolved to a username.
type PostView struct {
	domain.Listing
	Author string   `json:"author"`
	Tags   []string `json:"tags,omitempty"`
}

// ListingDetail is a PostView plus the donor's pickup address.
type ListingDetail struct {
	PostView
	DonorAddress string `json:"donorAddress,omitempty"`
}

// ClaimView is a claim with its claimer resolved and, where requested, the
// claimed listing attached.
type ClaimView struct {
	domain.Claim
	ClaimUser string         `json:"claimUser"`
	Post      *ListingDetail `json:"post,omitempty"`
}

// DeliveryView is a delivery with its deliverer resolved and the underlying
// claim attached.
type DeliveryView struct {
	domain.Delivery
	Deliverer string     `json:"deliverer"`
	Request   *ClaimView `json:"requestDetails,omitempty"`
}

// MessageView is a message with both parties resolved.
type MessageView struct {
	domain.Message
	From string `json:"from"`
	To   string `json:"to"`
}

func (a *App) postViews(ctx context.Context, listings []domain.Listing) ([]PostView, error) {
	ids := make([]string, len(listings))
	for i, l := range listings {
		ids[i] = l.AuthorID
	}
	names, err := a.users.IDsToUsernames(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]PostView, len(listings))
	for i, l := range listings {
		out[i] = PostView{Listing: l, Author: names[i]}
	}
	return out, nil
}

func (a *App) postView(ctx context.Context, l domain.Listing) (PostView, error) {
	views, err := a.postViews(ctx, []domain.Listing{l})
	if err != nil {
		return PostView{}, err
	}
	return views[0], nil
}

// listingDetail returns nil when the listing no longer exists.
func (a *App) listingDetail(ctx context.Context, listingID string) (*ListingDetail, error) {
	l, err := a.posts.Get(ctx, listingID)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return nil, nil
		}
		return nil, err
	}
	view, err := a.postView(ctx, l)
	if err != nil {
		return nil, err
	}
	detail := &ListingDetail{PostView: view}
	location, err := a.users.Location(ctx, l.AuthorID)
	switch {
	case err == nil:
		detail.DonorAddress = location
	case !domain.IsKind(err, domain.KindNotFound):
		return nil, err
	}
	return detail, nil
}

func (a *App) claimViews(ctx context.Context, claims []domain.Claim, withPost bool) ([]ClaimView, error) {
	ids := make([]string, len(claims))
	for i, c := range claims {
		ids[i] = c.ClaimerID
	}
	names, err := a.users.IDsToUsernames(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]ClaimView, len(claims))
	for i, c := range claims {
		out[i] = ClaimView{Claim: c, ClaimUser: names[i]}
	}
	if !withPost {
		return out, nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.fanout)
	for i := range out {
		g.Go(func() error {
			detail, err := a.listingDetail(gctx, out[i].ListingID)
			if err != nil {
				return err
			}
			out[i].Post = detail
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *App) claimView(ctx context.Context, c domain.Claim, withPost bool) (ClaimView, error) {
	views, err := a.claimViews(ctx, []domain.Claim{c}, withPost)
	if err != nil {
		return ClaimView{}, err
	}
	return views[0], nil
}

func (a *App) deliveryViews(ctx context.Context, deliveries []domain.Delivery) ([]DeliveryView, error) {
	ids := make([]string, len(deliveries))
	for i, d := range deliveries {
		ids[i] = d.DelivererID
	}
	names, err := a.users.IDsToUsernames(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]DeliveryView, len(deliveries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.fanout)
	for i, d := range deliveries {
		out[i] = DeliveryView{Delivery: d, Deliverer: names[i]}
		g.Go(func() error {
			c, err := a.claims.Get(gctx, d.ClaimID)
			if err != nil {
				if domain.IsKind(err, domain.KindNotFound) {
					return nil
				}
				return err
			}
			view, err := a.claimView(gctx, c, true)
			if err != nil {
				return err
			}
			out[i].Request = &view
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *App) deliveryView(ctx context.Context, d domain.Delivery) (DeliveryView, error) {
	views, err := a.deliveryViews(ctx, []domain.Delivery{d})
	if err != nil {
		return DeliveryView{}, err
	}
	return views[0], nil
}

func (a *App) messageViews(ctx context.Context, messages []domain.Message) ([]MessageView, error) {
	ids := make([]string, 0, 2*len(messages))
	for _, m := range messages {
		ids = append(ids, m.SenderID, m.ReceiverID)
	}
	names, err := a.users.IDsToUsernames(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]MessageView, len(messages))
	for i, m := range messages {
		out[i] = MessageView{Message: m, From: names[2*i], To: names[2*i+1]}
	}
	return out, nil
}

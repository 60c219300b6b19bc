package server

import (
	"fmt"
	"net/http"
	"strings"

	"foodshare/pkg/posting"
	"foodshare/services/foodshare/internal/app"
)

// sessions & users

func (s *Server) handleSessionUser(w http.ResponseWriter, r *http.Request, c app.Caller) {
	u, err := s.app.SessionUser(r.Context(), c)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.app.ListUsers(r.Context())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.app.GetUser(r.Context(), r.PathValue("username"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r, s.signupLimiter, "register") {
		return
	}
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	u, err := s.app.Register(r.Context(), s.sessionHandle(r), req.Username, req.Password, req.Role, req.Location)
	if err != nil {
		s.audit(r, "register", "fail", "username", req.Username)
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "register", "success", "user_id", u.ID)
	writeJSON(w, http.StatusCreated, map[string]any{"msg": "User created successfully!", "user": u})
}

func (s *Server) handleUpdateUsername(w http.ResponseWriter, r *http.Request, c app.Caller) {
	var req updateUsernameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if err := s.app.UpdateUsername(r.Context(), c, req.Username); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"msg": "Username updated successfully!"})
}

func (s *Server) handleUpdatePassword(w http.ResponseWriter, r *http.Request, c app.Caller) {
	var req updatePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if err := s.app.UpdatePassword(r.Context(), c, req.CurrentPassword, req.NewPassword); err != nil {
		s.audit(r, "password_change", "fail", "user_id", c.UserID)
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "password_change", "success", "user_id", c.UserID)
	writeJSON(w, http.StatusOK, map[string]string{"msg": "Password updated successfully!"})
}

func (s *Server) handleUpdateAddress(w http.ResponseWriter, r *http.Request, c app.Caller) {
	var req updateAddressRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if err := s.app.UpdateLocation(r.Context(), c, req.Address); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"msg": "Address updated successfully!"})
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request, c app.Caller) {
	if err := s.app.DeleteAccount(r.Context(), c); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "account_delete", "success", "user_id", c.UserID)
	s.clearSessionCookie(w, r)
	writeJSON(w, http.StatusOK, map[string]string{"msg": "User deleted!"})
}

func (s *Server) handleUserRole(w http.ResponseWriter, r *http.Request, c app.Caller) {
	role, err := s.app.UserRole(r.Context(), c)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"role": string(role)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r, s.loginLimiter, "login") {
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	handle, err := s.app.Login(r.Context(), s.sessionHandle(r), req.Username, req.Password)
	if err != nil {
		s.audit(r, "login", "fail", "username", req.Username)
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "login", "success", "username", req.Username)
	s.setSessionCookie(w, r, handle)
	writeJSON(w, http.StatusOK, map[string]string{"msg": "Logged in!"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Logout(r.Context(), s.sessionHandle(r)); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "logout", "success")
	s.clearSessionCookie(w, r)
	writeJSON(w, http.StatusOK, map[string]string{"msg": "Logged out!"})
}

// listings

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.app.ListPosts(r.Context(), strings.TrimSpace(r.URL.Query().Get("author")))
	writeList(s, w, r, posts, err)
}

func (s *Server) handleUserPosts(w http.ResponseWriter, r *http.Request, c app.Caller) {
	posts, err := s.app.UserPosts(r.Context(), c)
	writeList(s, w, r, posts, err)
}

func (s *Server) handleNonExpiredPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.app.NonExpiredPosts(r.Context())
	writeList(s, w, r, posts, err)
}

func (s *Server) handleNonExpiredUnclaimedPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.app.NonExpiredUnclaimedPosts(r.Context())
	writeList(s, w, r, posts, err)
}

func (s *Server) handleNonExpiredClaimedPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.app.NonExpiredClaimedPosts(r.Context())
	writeList(s, w, r, posts, err)
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request, c app.Caller) {
	var req createPostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	post, err := s.app.CreatePost(r.Context(), c, app.NewPost{
		FoodName:       req.FoodName,
		ExpirationTime: req.ExpirationTime,
		Quantity:       req.Quantity,
		Tags:           req.Tags,
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"msg": "Post successfully created!", "post": post})
}

func (s *Server) handleUpdatePost(w http.ResponseWriter, r *http.Request, c app.Caller) {
	var req updatePostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	post, err := s.app.UpdatePost(r.Context(), c, r.PathValue("id"), posting.Patch{
		FoodName:       req.FoodName,
		ExpirationTime: req.ExpirationTime,
		Quantity:       req.Quantity,
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"msg": "Post successfully updated!", "post": post})
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request, c app.Caller) {
	if err := s.app.DeletePost(r.Context(), c, r.PathValue("id")); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"msg": "Post deleted successfully!"})
}

// claims

func (s *Server) handleCreatePickupClaim(w http.ResponseWriter, r *http.Request, c app.Caller) {
	var req pickupClaimRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	claim, err := s.app.CreatePickupClaim(r.Context(), c, req.Post)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"msg": "Claim successfully created!", "claim": claim})
}

func (s *Server) handleCreateDeliveryClaim(w http.ResponseWriter, r *http.Request, c app.Caller) {
	var req deliveryClaimRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	claim, err := s.app.CreateDeliveryClaim(r.Context(), c, req.Post, req.Address, req.Instructions)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"msg": "Claim successfully created!", "claim": claim})
}

func (s *Server) handleCancelClaim(w http.ResponseWriter, r *http.Request, c app.Caller) {
	if err := s.app.CancelClaim(r.Context(), c, r.PathValue("post")); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"msg": "Claim deleted successfully!"})
}

func (s *Server) handleCompletePickupClaim(w http.ResponseWriter, r *http.Request, c app.Caller) {
	if err := s.app.CompletePickupClaim(r.Context(), c, r.PathValue("claim")); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"msg": "Claim completed successfully!"})
}

func (s *Server) handleUserClaims(w http.ResponseWriter, r *http.Request, c app.Caller) {
	claims, err := s.app.UserClaims(r.Context(), c)
	writeList(s, w, r, claims, err)
}

func (s *Server) handleListingClaim(w http.ResponseWriter, r *http.Request) {
	claim, err := s.app.ListingClaim(r.Context(), r.PathValue("post"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

// deliveries

func (s *Server) handleAcceptDelivery(w http.ResponseWriter, r *http.Request, c app.Caller) {
	var req acceptDeliveryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	d, err := s.app.AcceptDelivery(r.Context(), c, req.Request)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"msg": "Delivery successfully created!", "delivery": d})
}

func (s *Server) handleUnacceptDelivery(w http.ResponseWriter, r *http.Request, c app.Caller) {
	if err := s.app.UnacceptDelivery(r.Context(), c, r.PathValue("id")); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"msg": "Delivery unaccepted successfully!"})
}

func (s *Server) handleStartDelivery(w http.ResponseWriter, r *http.Request, c app.Caller) {
	if err := s.app.StartDelivery(r.Context(), c, r.PathValue("id")); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"msg": "Delivery started successfully!"})
}

func (s *Server) handleCompleteDelivery(w http.ResponseWriter, r *http.Request, c app.Caller) {
	if err := s.app.CompleteDelivery(r.Context(), c, r.PathValue("id")); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"msg": "Delivery completed successfully!"})
}

func (s *Server) handleListDeliveries(w http.ResponseWriter, r *http.Request) {
	deliveries, err := s.app.ListDeliveries(r.Context(), strings.TrimSpace(r.URL.Query().Get("deliverer")))
	writeList(s, w, r, deliveries, err)
}

func (s *Server) handleDeliveryStatus(w http.ResponseWriter, r *http.Request) {
	d, err := s.app.DeliveryStatus(r.Context(), r.PathValue("claim"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleAvailableRequests(w http.ResponseWriter, r *http.Request, c app.Caller) {
	claims, err := s.app.AvailableRequests(r.Context(), c)
	writeList(s, w, r, claims, err)
}

func (s *Server) handleUserDeliveries(w http.ResponseWriter, r *http.Request, c app.Caller) {
	deliveries, err := s.app.UserDeliveries(r.Context(), c)
	writeList(s, w, r, deliveries, err)
}

// messages

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request, c app.Caller) {
	messages, err := s.app.Conversation(r.Context(), c, r.URL.Query().Get("otherUser"))
	writeList(s, w, r, messages, err)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request, c app.Caller) {
	var req sendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	m, err := s.app.SendMessage(r.Context(), c, req.To, req.Content)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"msg": "Message sent!", "message": m})
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request, c app.Caller) {
	if err := s.app.DeleteMessage(r.Context(), c, r.PathValue("id")); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"msg": "Message deleted!"})
}

// tags

func (s *Server) handleListingTags(w http.ResponseWriter, r *http.Request) {
	set, err := s.app.ListingTags(r.Context(), r.PathValue("post"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

// handleItemsWithTags accepts repeated ?tags= values as well as a comma separated list.
func (s *Server) handleItemsWithTags(w http.ResponseWriter, r *http.Request) {
	var tags []string
	for _, v := range r.URL.Query()["tags"] {
		for tag := range strings.SplitSeq(v, ",") {
			tags = append(tags, tag)
		}
	}
	sets, err := s.app.ItemsWithTags(r.Context(), tags)
	writeList(s, w, r, sets, err)
}

func (s *Server) handleAddTag(w http.ResponseWriter, r *http.Request, c app.Caller) {
	var req addTagRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	post := r.PathValue("post")
	set, err := s.app.AddTag(r.Context(), c, post, req.Tag)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"msg":  fmt.Sprintf("Tag %q added to post %s", req.Tag, post),
		"tags": set,
	})
}

func (s *Server) handleDeleteTag(w http.ResponseWriter, r *http.Request, c app.Caller) {
	post, tag := r.PathValue("post"), r.PathValue("tag")
	set, err := s.app.DeleteTag(r.Context(), c, post, tag)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"msg":  fmt.Sprintf("Tag %q deleted from post %s", tag, post),
		"tags": set,
	})
}

// writeList renders a list result, encoding nil as an empty array.
func writeList[T any](s *Server, w http.ResponseWriter, r *http.Request, items []T, err error) {
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if items == nil {
		items = []T{}
	}
	writeJSON(w, http.StatusOK, items)
}

package main

import (
	"encoding/json"
	"net/http"

	"github.com/bmizerany/pat"
	"github.com/justinas/alice"
)

func (app *application) routes() http.Handler {
	standardMiddleware := alice.New(app.recoverPanic, app.logRequest, app.metrics.instrument, secureHeaders, makeResponseJSON)
	optionalAuthMiddleware := standardMiddleware.Append(app.optionalAuth)
	authMiddleware := standardMiddleware.Append(app.JWTMiddlewareWithRole(""))
	proAuthMiddleware := standardMiddleware.Append(app.JWTMiddlewareWithRole(rolePro))
	adminAuthMiddleware := standardMiddleware.Append(app.JWTMiddlewareWithRole("admin"))
	authLimited := func(name string) alice.Chain {
		return standardMiddleware.Append(app.rateLimit(app.authLimiter, name))
	}
	reportLimited := func(name string) alice.Chain {
		return optionalAuthMiddleware.Append(app.rateLimit(app.reportLimiter, name))
	}

	mux := pat.New()

	mux.Get("/healthz", standardMiddleware.ThenFunc(app.healthz))
	mux.Get("/metrics", app.metrics.handler())

	// Auth
	mux.Post("/auth/signup", authLimited("signup").ThenFunc(app.userHandler.SignUp))
	mux.Post("/auth/signin", authLimited("signin").ThenFunc(app.userHandler.SignIn))
	mux.Post("/auth/refresh", authLimited("refresh").ThenFunc(app.userHandler.Refresh))
	mux.Post("/auth/confirm", authLimited("confirm").ThenFunc(app.userHandler.ConfirmEmail))
	mux.Post("/auth/password/forgot", authLimited("forgot").ThenFunc(app.userHandler.ForgotPassword))
	mux.Post("/auth/password/reset", authLimited("reset").ThenFunc(app.userHandler.ResetPassword))
	mux.Get("/auth/google/callback", standardMiddleware.ThenFunc(app.userHandler.GoogleCallback))
	mux.Get("/auth/google", standardMiddleware.ThenFunc(app.userHandler.GoogleLogin))
	mux.Post("/auth/logout", authMiddleware.ThenFunc(app.userHandler.Logout))
	mux.Post("/auth/realtime/token", authMiddleware.ThenFunc(app.userHandler.RealtimeToken))

	// Me
	mux.Get("/me", authMiddleware.ThenFunc(app.userHandler.Me))
	mux.Put("/me", authMiddleware.ThenFunc(app.userHandler.UpdateMe))
	mux.Del("/me", authMiddleware.ThenFunc(app.userHandler.DeleteMe))
	mux.Put("/me/password", authMiddleware.ThenFunc(app.userHandler.ChangePassword))
	mux.Get("/me/profile", authMiddleware.ThenFunc(app.profileHandler.Mine))
	mux.Put("/me/profile", authMiddleware.ThenFunc(app.profileHandler.Upsert))
	mux.Post("/me/profile/avatar", authMiddleware.ThenFunc(app.profileHandler.UploadImage))
	mux.Get("/me/services", proAuthMiddleware.ThenFunc(app.serviceHandler.ListMine))
	mux.Post("/me/services", proAuthMiddleware.ThenFunc(app.serviceHandler.Create))
	mux.Put("/me/services/:id", proAuthMiddleware.ThenFunc(app.serviceHandler.Update))
	mux.Post("/me/services/:id/cancel", proAuthMiddleware.Then(app.serviceHandler.Cancel()))
	mux.Post("/me/services/:id/deactivate", proAuthMiddleware.Then(app.serviceHandler.Deactivate()))
	mux.Post("/me/services/:id/activate", proAuthMiddleware.Then(app.serviceHandler.Activate()))
	mux.Get("/me/subscription", authMiddleware.ThenFunc(app.subscriptionHandler.Mine))
	mux.Post("/me/subscription/cancel", authMiddleware.ThenFunc(app.subscriptionHandler.Cancel))

	// Taxonomy
	mux.Get("/taxonomy", standardMiddleware.ThenFunc(app.categoryHandler.Tree))

	// Profiles
	mux.Get("/profiles", standardMiddleware.ThenFunc(app.profileHandler.List))
	mux.Get("/profiles/:username/reviews", standardMiddleware.ThenFunc(app.reviewHandler.ListByProfile))
	mux.Get("/profiles/:username", optionalAuthMiddleware.ThenFunc(app.profileHandler.Get))

	// Services
	mux.Get("/services", standardMiddleware.ThenFunc(app.serviceHandler.List))
	mux.Get("/services/:id/reviews", standardMiddleware.ThenFunc(app.reviewHandler.ListByService))
	mux.Post("/services/:id/reviews", authMiddleware.ThenFunc(app.reviewHandler.Create))
	mux.Get("/services/:slug", optionalAuthMiddleware.ThenFunc(app.serviceHandler.GetBySlug))

	// Reviews
	mux.Put("/reviews/:id", authMiddleware.ThenFunc(app.reviewHandler.Update))
	mux.Del("/reviews/:id", authMiddleware.ThenFunc(app.reviewHandler.Delete))

	// Reports and contact
	mux.Post("/reports", reportLimited("report").ThenFunc(app.complaintHandler.CreateReport))
	mux.Post("/contact", reportLimited("contact").ThenFunc(app.complaintHandler.Contact))

	// Saved
	mux.Get("/saved", authMiddleware.ThenFunc(app.savedHandler.List))
	mux.Get("/saved/ids", authMiddleware.ThenFunc(app.savedHandler.IDs))
	mux.Post("/saved/:kind/:id", authMiddleware.ThenFunc(app.savedHandler.Save))
	mux.Del("/saved/:kind/:id", authMiddleware.ThenFunc(app.savedHandler.Remove))

	// Bookings
	mux.Post("/bookings", authMiddleware.ThenFunc(app.bookingHandler.Request))
	mux.Get("/bookings", authMiddleware.ThenFunc(app.bookingHandler.List))
	mux.Get("/bookings/:id", authMiddleware.ThenFunc(app.bookingHandler.Get))
	mux.Put("/bookings/:id", authMiddleware.ThenFunc(app.bookingHandler.Decide))

	// Chats
	if app.chatHandler != nil {
		mux.Post("/chats", authMiddleware.ThenFunc(app.chatHandler.Start))
		mux.Get("/chats", authMiddleware.ThenFunc(app.chatHandler.List))
		mux.Get("/chats/unread", authMiddleware.ThenFunc(app.chatHandler.Unread))
		mux.Get("/chats/:id/messages", authMiddleware.ThenFunc(app.chatHandler.Messages))
		mux.Post("/chats/:id/messages", authMiddleware.ThenFunc(app.chatHandler.Send))
		mux.Post("/chats/:id/read", authMiddleware.ThenFunc(app.chatHandler.MarkRead))
		mux.Put("/messages/:id", authMiddleware.ThenFunc(app.chatHandler.EditMessage))
		mux.Del("/messages/:id", authMiddleware.ThenFunc(app.chatHandler.DeleteMessage))
	}
	mux.Get("/ws", alice.New(app.recoverPanic, app.logRequest).ThenFunc(app.WebSocketHandler))

	// Devices
	mux.Post("/devices", authMiddleware.ThenFunc(app.deviceHandler.Register))
	mux.Del("/devices", authMiddleware.ThenFunc(app.deviceHandler.Unregister))

	// Admin
	mux.Get("/admin/users", adminAuthMiddleware.ThenFunc(app.adminHandler.Users))
	mux.Put("/admin/users/:id/blocked", adminAuthMiddleware.ThenFunc(app.adminHandler.SetBlocked))
	mux.Put("/admin/users/:id/role", adminAuthMiddleware.ThenFunc(app.adminHandler.SetRole))
	mux.Del("/admin/users/:id", adminAuthMiddleware.ThenFunc(app.adminHandler.DeleteUser))
	mux.Get("/admin/services", adminAuthMiddleware.ThenFunc(app.serviceHandler.ModerationQueue))
	mux.Put("/admin/services/:id", adminAuthMiddleware.ThenFunc(app.serviceHandler.Moderate))
	mux.Get("/admin/reports", adminAuthMiddleware.ThenFunc(app.complaintHandler.ListReports))
	mux.Put("/admin/reports/:id", adminAuthMiddleware.ThenFunc(app.complaintHandler.ResolveReport))
	mux.Get("/admin/profiles", adminAuthMiddleware.ThenFunc(app.profileHandler.AdminList))
	mux.Put("/admin/profiles/:id/verified", adminAuthMiddleware.ThenFunc(app.profileHandler.SetVerified))
	mux.Put("/admin/profiles/:id/featured", adminAuthMiddleware.ThenFunc(app.profileHandler.SetFeatured))
	mux.Post("/admin/subscriptions", adminAuthMiddleware.ThenFunc(app.subscriptionHandler.Activate))
	mux.Post("/admin/taxonomy/:level", adminAuthMiddleware.ThenFunc(app.categoryHandler.Create))
	mux.Put("/admin/taxonomy/:level/:id", adminAuthMiddleware.ThenFunc(app.categoryHandler.Update))
	mux.Del("/admin/taxonomy/:level/:id", adminAuthMiddleware.ThenFunc(app.categoryHandler.Delete))
	mux.Get("/admin/stats", adminAuthMiddleware.ThenFunc(app.adminHandler.Stats))
	mux.Post("/admin/revalidate", adminAuthMiddleware.ThenFunc(app.adminHandler.Revalidate))

	return mux
}

func (app *application) healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"chat":      app.chatHandler != nil,
		"ws_online": app.wsManager.Online(),
	})
}

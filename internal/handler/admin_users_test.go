package handler

import (
	"net/http"
)

func (s *HandlerSuite) TestAdminRouteForbiddenForUser() {
	u := s.seed("user_alice", "alice@example.com", "user")
	res := s.do(http.MethodGet, "/api/admin/users", "", bearer(s.accessFor(u)))
	s.Equal(http.StatusForbidden, res.code)
	s.Equal("Forbidden: Admin access required", res.body["message"])
}

func (s *HandlerSuite) TestAdminListUsers() {
	admin := s.seed("user_admin", "admin@example.com", "admin")
	s.seed("user_alice", "alice@example.com", "user")
	s.seed("user_mod", "mod@example.com", "user", "moderator")

	res := s.do(http.MethodGet, "/api/admin/users?role=moderator&limit=500", "", bearer(s.accessFor(admin)))
	s.Require().Equal(http.StatusOK, res.code)
	users := res.body["users"].([]any)
	s.Len(users, 1)
	s.Equal("user_mod", users[0].(map[string]any)["userId"])
	s.NotContains(users[0], "userPassword")

	page := res.body["pagination"].(map[string]any)
	s.Equal(float64(1), page["page"])
	s.Equal(float64(100), page["limit"])
	s.Equal(float64(1), page["total"])
	s.Equal(float64(1), page["pages"])

	res = s.do(http.MethodGet, "/api/admin/users?role=root", "", bearer(s.accessFor(admin)))
	s.Equal(http.StatusBadRequest, res.code)
}

func (s *HandlerSuite) TestAdminReplaceRoles() {
	admin := s.seed("user_admin", "admin@example.com", "admin")
	s.seed("user_alice", "alice@example.com", "user")
	tok := s.accessFor(admin)

	res := s.do(http.MethodPut, "/api/admin/users/user_alice/roles", `{"roles":["moderator","MODERATOR","bogus","user"]}`, bearer(tok))
	s.Require().Equal(http.StatusOK, res.code)
	s.Equal([]any{"moderator", "user"}, res.body["roles"])

	res = s.do(http.MethodGet, "/api/admin/users/user_alice/roles", "", bearer(tok))
	s.Equal(http.StatusOK, res.code)
	s.Equal([]any{"moderator", "user"}, res.body["roles"])
}

func (s *HandlerSuite) TestAdminReplaceRolesValidation() {
	admin := s.seed("user_admin", "admin@example.com", "admin")
	s.seed("user_alice", "alice@example.com", "user")
	tok := s.accessFor(admin)

	res := s.do(http.MethodPut, "/api/admin/users/user_alice/roles", `{"roles":[]}`, bearer(tok))
	s.Equal(http.StatusBadRequest, res.code)
	s.Equal("Roles must be a non-empty array", res.body["message"])

	res = s.do(http.MethodPut, "/api/admin/users/user_alice/roles", `{"roles":["root"]}`, bearer(tok))
	s.Equal(http.StatusBadRequest, res.code)
	s.Equal("At least one valid role required. Allowed: guest, user, moderator, admin", res.body["message"])

	res = s.do(http.MethodPut, "/api/admin/users/user_ghost/roles", `{"roles":["user"]}`, bearer(tok))
	s.Equal(http.StatusNotFound, res.code)
	s.Equal("User not found", res.body["message"])
}

func (s *HandlerSuite) TestAdminCannotDemoteSelf() {
	admin := s.seed("user_admin", "admin@example.com", "admin", "user")
	tok := s.accessFor(admin)

	res := s.do(http.MethodPut, "/api/admin/users/user_admin/roles", `{"roles":["user"]}`, bearer(tok))
	s.Equal(http.StatusBadRequest, res.code)
	s.Equal("Self-demotion is not allowed", res.body["message"])

	res = s.do(http.MethodDelete, "/api/admin/users/user_admin/roles", `{"role":"admin"}`, bearer(tok))
	s.Equal(http.StatusBadRequest, res.code)
	s.Equal("Self-demotion is not allowed", res.body["message"])

	res = s.do(http.MethodPut, "/api/admin/users/user_admin/roles", `{"roles":["admin","moderator"]}`, bearer(tok))
	s.Equal(http.StatusOK, res.code)
}

func (s *HandlerSuite) TestAdminRemoveLastRoleReinstatesUser() {
	admin := s.seed("user_admin", "admin@example.com", "admin")
	s.seed("user_mod", "mod@example.com", "moderator")
	tok := s.accessFor(admin)

	res := s.do(http.MethodDelete, "/api/admin/users/user_mod/roles", `{"role":"moderator"}`, bearer(tok))
	s.Require().Equal(http.StatusOK, res.code)
	s.Equal([]any{"user"}, res.body["roles"])

	res = s.do(http.MethodDelete, "/api/admin/users/user_mod/roles", `{"role":"root"}`, bearer(tok))
	s.Equal(http.StatusBadRequest, res.code)
}

// Package dashboard renders the admin index page: a set of modules, each a
// titled list of links, some of which are only shown to users holding the
// right permissions or group membership.
package dashboard

import (
	"context"

	"github.com/adonese/adminutils/users"
)

// Context is what a module sees when it is prepared for one request.
type Context struct {
	context.Context
	User *users.User
}

// Module is one box on the dashboard. Dashboards keep module prototypes and
// call InitWithContext on a Clone for every request.
type Module interface {
	Clone() Module
	InitWithContext(ctx Context) error
	IsEmpty() bool
	View() ModuleView
}

// Link is one entry of a LinkList.
type Link struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	External bool   `json:"external,omitempty"`
}

// ModuleView is the render-ready state of a module.
type ModuleView struct {
	Title       string `json:"title"`
	PreContent  string `json:"pre_content,omitempty"`
	PostContent string `json:"post_content,omitempty"`
	Children    []Link `json:"children"`
}

// LinkList is a titled list of links with optional text before and after.
// PreContentFunc, when set, fills PreContent at init.
type LinkList struct {
	Title          string
	PreContent     string
	PreContentFunc func(ctx Context) (string, error)
	PostContent    string
	Children       []Link
}

func (l *LinkList) Clone() Module {
	c := *l
	c.Children = append([]Link(nil), l.Children...)
	return &c
}

func (l *LinkList) InitWithContext(ctx Context) error {
	if l.PreContentFunc == nil {
		return nil
	}
	s, err := l.PreContentFunc(ctx)
	if err != nil {
		return err
	}
	l.PreContent = s
	return nil
}

func (l *LinkList) IsEmpty() bool {
	return len(l.Children) == 0 && l.PreContent == "" && l.PostContent == ""
}

func (l *LinkList) View() ModuleView {
	return ModuleView{
		Title:       l.Title,
		PreContent:  l.PreContent,
		PostContent: l.PostContent,
		Children:    append([]Link(nil), l.Children...),
	}
}

func (l *LinkList) clear() {
	l.Children = nil
	l.PreContent = ""
	l.PostContent = ""
}

// PermCheckingLinkList hides its content from users lacking any of
// RequiredPerms. Superusers always see it.
type PermCheckingLinkList struct {
	LinkList
	RequiredPerms []string
}

func (l *PermCheckingLinkList) Clone() Module {
	return &PermCheckingLinkList{
		LinkList:      *l.LinkList.Clone().(*LinkList),
		RequiredPerms: append([]string(nil), l.RequiredPerms...),
	}
}

func (l *PermCheckingLinkList) InitWithContext(ctx Context) error {
	if len(l.RequiredPerms) > 0 && !superuserOr(ctx.User, func(u *users.User) bool { return u.HasPerms(l.RequiredPerms...) }) {
		l.clear()
		return nil
	}
	return l.LinkList.InitWithContext(ctx)
}

// GroupCheckingLinkList hides its content from users outside RequiredGroup.
// Superusers always see it.
type GroupCheckingLinkList struct {
	LinkList
	RequiredGroup string
}

func (l *GroupCheckingLinkList) Clone() Module {
	return &GroupCheckingLinkList{
		LinkList:      *l.LinkList.Clone().(*LinkList),
		RequiredGroup: l.RequiredGroup,
	}
}

func (l *GroupCheckingLinkList) InitWithContext(ctx Context) error {
	if l.RequiredGroup != "" && !superuserOr(ctx.User, func(u *users.User) bool { return u.InGroup(l.RequiredGroup) }) {
		l.clear()
		return nil
	}
	return l.LinkList.InitWithContext(ctx)
}

func superuserOr(u *users.User, allowed func(*users.User) bool) bool {
	if u == nil {
		return false
	}
	return u.IsSuperuser || allowed(u)
}

// Command lattice-admin performs administrative graph operations directly
// against the configured store: registering users, managing global
// permissions, and maintaining groups and memberships. It bypasses the HTTP
// API on purpose, because bootstrap actions (the first sysadmin, for one)
// cannot authenticate yet.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/platinummonkey/lattice/pkg/config"
	"github.com/platinummonkey/lattice/pkg/graph"
	"github.com/platinummonkey/lattice/pkg/graph/postgres"
	"github.com/platinummonkey/lattice/pkg/graph/surreal"
)

var log = logrus.New()

func main() {
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	store, cleanup, err := openStore(cfg)
	if err != nil {
		log.WithError(err).Fatal("cannot open store")
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch os.Args[1] {
	case "register":
		cmdRegister(ctx, store, cfg, os.Args[2:])
	case "grant":
		cmdGrant(ctx, store, os.Args[2:])
	case "create-group":
		cmdCreateGroup(ctx, store, os.Args[2:])
	case "add-member":
		cmdAddMember(ctx, store, os.Args[2:])
	case "list-users":
		cmdListUsers(ctx, store)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: lattice-admin <command> [flags]

commands:
  register      register a user (-email, -password)
  grant         add a global permission to a user (-email, -perm)
  create-group  create a group (-name, -perms)
  add-member    add a user or group to a group (-member, -group)
  list-users    print all users`)
}

func openStore(cfg *config.Config) (graph.Store, func(), error) {
	switch cfg.Store.Type {
	case "memory":
		return nil, nil, fmt.Errorf("the memory store holds no durable data to administer")
	case "postgres":
		store, err := postgres.Open(cfg.Store.PostgresURL, cfg.Store.PostgresMaxConns, cfg.Store.PostgresTimeout)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	case "surreal":
		store, err := surreal.Open(surreal.Config{
			URL:       cfg.Store.SurrealURL,
			User:      cfg.Store.SurrealUser,
			Password:  cfg.Store.SurrealPassword,
			Namespace: cfg.Store.SurrealNamespace,
			Database:  cfg.Store.SurrealDatabase,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store type %q", cfg.Store.Type)
	}
}

func cmdRegister(ctx context.Context, store graph.Store, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	email := fs.String("email", "", "user email")
	password := fs.String("password", "", "user password")
	fs.Parse(args)
	if *email == "" || *password == "" {
		log.Fatal("register requires -email and -password")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), cfg.Auth.BcryptCost)
	if err != nil {
		log.WithError(err).Fatal("hash password")
	}
	u := &graph.User{Email: *email, PasswordHash: hash, CreatedAt: time.Now().UTC()}
	if err := store.SaveUser(ctx, u); err != nil {
		log.WithError(err).Fatal("save user")
	}
	log.WithFields(logrus.Fields{"id": u.ID, "email": u.Email}).Info("user registered")
}

func cmdGrant(ctx context.Context, store graph.Store, args []string) {
	fs := flag.NewFlagSet("grant", flag.ExitOnError)
	email := fs.String("email", "", "user email")
	perm := fs.String("perm", "", "permission name (canView, canEdit, sysadmin)")
	fs.Parse(args)
	p := graph.Perm(*perm)
	if *email == "" || !p.Valid() {
		log.Fatal("grant requires -email and a valid -perm")
	}

	u, err := store.FindUserByEmail(ctx, *email)
	if err != nil {
		log.WithError(err).Fatal("find user")
	}
	for _, held := range u.Perms {
		if held == p {
			log.WithField("email", u.Email).Info("permission already held")
			return
		}
	}
	u.Perms = append(u.Perms, p)
	if err := store.UpdateUser(ctx, u); err != nil {
		log.WithError(err).Fatal("update user")
	}
	log.WithFields(logrus.Fields{"email": u.Email, "perm": *perm}).Info("permission granted")
}

func cmdCreateGroup(ctx context.Context, store graph.Store, args []string) {
	fs := flag.NewFlagSet("create-group", flag.ExitOnError)
	name := fs.String("name", "", "group name")
	perms := fs.String("perms", "", "comma-separated permission names")
	fs.Parse(args)
	if *name == "" {
		log.Fatal("create-group requires -name")
	}

	g := &graph.Group{Name: *name}
	for _, raw := range strings.Split(*perms, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		p := graph.Perm(raw)
		if !p.Valid() {
			log.WithField("perm", raw).Fatal("unknown permission name")
		}
		g.Perms = append(g.Perms, p)
	}
	if err := store.SaveGroup(ctx, g); err != nil {
		log.WithError(err).Fatal("save group")
	}
	log.WithFields(logrus.Fields{"id": g.ID, "name": g.Name}).Info("group created")
}

func cmdAddMember(ctx context.Context, store graph.Store, args []string) {
	fs := flag.NewFlagSet("add-member", flag.ExitOnError)
	member := fs.String("member", "", "member node ID (users/... or groups/...) or user email")
	group := fs.String("group", "", "group node ID")
	fs.Parse(args)
	if *member == "" || *group == "" {
		log.Fatal("add-member requires -member and -group")
	}

	memberID := *member
	if !strings.Contains(memberID, "/") {
		u, err := store.FindUserByEmail(ctx, memberID)
		if err != nil {
			log.WithError(err).Fatal("find member by email")
		}
		memberID = u.ID
	}
	groupID := graph.JoinID(graph.KindGroup, *group)
	if _, err := store.GetGroup(ctx, groupID); err != nil {
		log.WithError(err).Fatal("find group")
	}

	edge := &graph.Edge{Kind: graph.EdgeMemberOf, From: memberID, To: groupID}
	if err := store.SaveEdge(ctx, edge); err != nil {
		log.WithError(err).Fatal("save membership edge")
	}
	log.WithFields(logrus.Fields{"member": memberID, "group": groupID}).Info("member added")
}

func cmdListUsers(ctx context.Context, store graph.Store) {
	list, err := store.ListUsers(ctx, 0)
	if err != nil {
		log.WithError(err).Fatal("list users")
	}
	for _, u := range list {
		perms := make([]string, 0, len(u.Perms))
		for _, p := range u.Perms {
			perms = append(perms, string(p))
		}
		fmt.Printf("%s\t%s\t[%s]\n", u.ID, u.Email, strings.Join(perms, ","))
	}
}

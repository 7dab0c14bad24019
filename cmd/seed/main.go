package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/filmpulse/filmpulse/internal/config"
	"github.com/filmpulse/filmpulse/internal/logging"
	"github.com/filmpulse/filmpulse/internal/repository"
	"github.com/filmpulse/filmpulse/internal/store"
)

type fixture struct {
	Genres []string      `json:"genres"`
	Users  []userEntry   `json:"users"`
	Movies []movieEntry  `json:"movies"`
	Rates  []ratingEntry `json:"ratings"`
}

type userEntry struct {
	Key   string `json:"key"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type movieEntry struct {
	Key         string   `json:"key"`
	Title       string   `json:"title"`
	ReleaseYear int      `json:"releaseYear"`
	Synopsis    string   `json:"synopsis"`
	ImageURL    *string  `json:"imageUrl"`
	Genres      []string `json:"genres"`
}

type ratingEntry struct {
	Movie   string     `json:"movie"`
	User    string     `json:"user"`
	Score   float64    `json:"score"`
	RatedAt *time.Time `json:"ratedAt"`
}

func main() {
	data := flag.String("data", "seed.json", "path to the seed fixture file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	raw, err := os.ReadFile(*data)
	if err != nil {
		log.Fatalf("read fixture: %v", err)
	}
	var fx fixture
	if err := json.Unmarshal(raw, &fx); err != nil {
		log.Fatalf("parse fixture: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	st, err := store.New(ctx, cfg.Database.URL, store.Options{}, logging.New(cfg.Log))
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer st.Close()

	repo := repository.New(st)

	genreIDs := make(map[string]string, len(fx.Genres))
	for _, name := range fx.Genres {
		genre, err := repo.Genres.Create(ctx, name)
		if err != nil {
			log.Fatalf("seed genre %q: %v", name, err)
		}
		genreIDs[name] = genre.ID
	}

	userIDs := make(map[string]string, len(fx.Users))
	for _, u := range fx.Users {
		user, err := repo.Users.Create(ctx, repository.UserCreateParams{Email: u.Email, Name: u.Name})
		if err != nil {
			log.Fatalf("seed user %q: %v", u.Email, err)
		}
		userIDs[u.Key] = user.ID
	}

	movieIDs := make(map[string]string, len(fx.Movies))
	for _, m := range fx.Movies {
		ids := make([]string, 0, len(m.Genres))
		for _, name := range m.Genres {
			id, ok := genreIDs[name]
			if !ok {
				log.Fatalf("movie %q references unknown genre %q", m.Title, name)
			}
			ids = append(ids, id)
		}
		movie, err := repo.Movies.Create(ctx, repository.MovieCreateParams{
			Title:       m.Title,
			ReleaseYear: m.ReleaseYear,
			Synopsis:    m.Synopsis,
			ImageURL:    m.ImageURL,
			GenreIDs:    ids,
		})
		if err != nil {
			log.Fatalf("seed movie %q: %v", m.Title, err)
		}
		movieIDs[m.Key] = movie.ID
	}

	for _, rt := range fx.Rates {
		movieID, ok := movieIDs[rt.Movie]
		if !ok {
			log.Fatalf("rating references unknown movie %q", rt.Movie)
		}
		userID, ok := userIDs[rt.User]
		if !ok {
			log.Fatalf("rating references unknown user %q", rt.User)
		}
		ratedAt := time.Now().UTC()
		if rt.RatedAt != nil {
			ratedAt = rt.RatedAt.UTC()
		}
		if _, err := repo.Ratings.Submit(ctx, repository.RatingSubmitParams{
			MovieID: movieID,
			UserID:  userID,
			Score:   rt.Score,
			RatedAt: ratedAt,
		}); err != nil {
			log.Fatalf("seed rating %s/%s: %v", rt.Movie, rt.User, err)
		}
	}

	log.Printf("seeded %d genres, %d users, %d movies, %d ratings",
		len(fx.Genres), len(fx.Users), len(fx.Movies), len(fx.Rates))
}

package seed

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"matcha/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/jaswdr/faker"
	"golang.org/x/crypto/bcrypt"
)

// Bounds of generated values.
const (
	MinTags      = 3
	MaxTags      = 8
	MinAge       = 18
	MaxAge       = 50 // exclusive
	MaxBioLength = 200
	MaxJitterDeg = 0.1
	MaxFame      = 100.0
)

// Profile is one synthesized person: the user row plus the data for its
// dependent rows.
type Profile struct {
	Index int
	User  models.User
	City  string
	Lat   float64
	Lon   float64
	Tags  []string
}

// Generator synthesizes profiles. It performs no I/O; all randomness comes
// from the injected source so runs are reproducible under test.
type Generator struct {
	catalog     Catalog
	rng         *rand.Rand
	now         func() time.Time
	fake        *gofakeit.Faker
	people      faker.Person
	password    string
	emailDomain string
	bcryptCost  int
}

// NewGenerator returns a Generator drawing from catalog with the credentials in opts.
func NewGenerator(catalog Catalog, opts Options, rng *rand.Rand) *Generator {
	f := faker.NewWithSeed(rand.NewSource(rng.Int63()))
	return &Generator{
		catalog:     catalog,
		rng:         rng,
		now:         time.Now,
		fake:        gofakeit.New(rng.Int63()),
		people:      f.Person(),
		password:    opts.TestPassword,
		emailDomain: opts.EmailDomain,
		bcryptCost:  opts.BcryptCost,
	}
}

// WithClock overrides the time source used to compute birthdays.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Catalog returns the catalog the generator draws from.
func (g *Generator) Catalog() Catalog {
	return g.catalog
}

// Generate builds the profile for the given run index (1-based, unique per run).
func (g *Generator) Generate(index int) (*Profile, error) {
	if index < 1 {
		return nil, fmt.Errorf("generate user: index must be positive, got %d", index)
	}

	gender := models.Genders[g.rng.Intn(len(models.Genders))]
	first, last := g.name(gender)
	username := Username(first, last, index)

	hash, err := bcrypt.GenerateFromPassword([]byte(g.password), g.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	city := g.catalog.Cities[g.rng.Intn(len(g.catalog.Cities))]

	return &Profile{
		Index: index,
		User: models.User{
			Username:     username,
			Email:        username + "@" + g.emailDomain,
			PasswordHash: string(hash),
			FirstName:    first,
			LastName:     last,
			Gender:       gender,
			Orientation:  models.Orientations[g.rng.Intn(len(models.Orientations))],
			Birthday:     g.birthday(),
			Bio:          g.bio(),
			Verified:     true,
			FameRating:   g.fame(),
		},
		City: city.Name,
		Lat:  city.Lat + g.jitter(),
		Lon:  city.Lon + g.jitter(),
		Tags: g.tags(),
	}, nil
}

// Username derives the login name from the person's name and run index.
func Username(first, last string, index int) string {
	u := strings.ToLower(first + last + strconv.Itoa(index))
	return strings.NewReplacer(" ", "", "'", "").Replace(u)
}

// name picks a locale (fr_FR pool or en_US generators) and draws a gendered first
// name and an independent last name from it.
func (g *Generator) name(gender models.Gender) (string, string) {
	pool := g.catalog.Names
	if g.rng.Intn(2) == 0 {
		first := pool.Female
		if gender == models.GenderMan {
			first = pool.Male
		}
		return first[g.rng.Intn(len(first))], pool.Last[g.rng.Intn(len(pool.Last))]
	}

	if gender == models.GenderMan {
		return g.people.FirstNameMale(), g.fake.LastName()
	}
	return g.people.FirstNameFemale(), g.fake.LastName()
}

// birthday returns a date such that Age(birthday, now) is in [MinAge, MaxAge).
func (g *Generator) birthday() time.Time {
	now := g.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	youngest := today.AddDate(-MinAge, 0, 0)
	for Age(youngest, today) < MinAge {
		youngest = youngest.AddDate(0, 0, -1)
	}
	oldest := today.AddDate(-MaxAge, 0, 1)
	for Age(oldest, today) >= MaxAge {
		oldest = oldest.AddDate(0, 0, 1)
	}

	span := int(youngest.Sub(oldest).Hours() / 24)
	return oldest.AddDate(0, 0, g.rng.Intn(span+1))
}

// Age returns the number of whole years between birthday and at.
func Age(birthday, at time.Time) int {
	years := at.Year() - birthday.Year()
	if at.Month() < birthday.Month() || (at.Month() == birthday.Month() && at.Day() < birthday.Day()) {
		years--
	}
	return years
}

// bio joins filler sentences up to MaxBioLength characters.
func (g *Generator) bio() string {
	var sb strings.Builder
	for {
		s := g.fake.Sentence(4 + g.rng.Intn(8))
		n := len([]rune(s))
		if sb.Len() > 0 {
			n++
		}
		if len([]rune(sb.String()))+n > MaxBioLength {
			break
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(s)
	}
	if sb.Len() == 0 {
		return truncateRunes(g.fake.Sentence(4), MaxBioLength)
	}
	return sb.String()
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func (g *Generator) jitter() float64 {
	return (g.rng.Float64()*2 - 1) * MaxJitterDeg
}

// fame returns a rating in [0, MaxFame] rounded to two decimals.
func (g *Generator) fame() float64 {
	return math.Round(g.rng.Float64()*MaxFame*100) / 100
}

// tags samples between MinTags and MaxTags distinct catalog tags.
func (g *Generator) tags() []string {
	n := MinTags + g.rng.Intn(MaxTags-MinTags+1)
	perm := g.rng.Perm(len(g.catalog.Tags))
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = g.catalog.Tags[perm[i]]
	}
	return out
}

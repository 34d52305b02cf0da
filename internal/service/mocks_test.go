package service

import (
	"context"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/realqkqk123fr/temp-backend/internal/domain"
	"github.com/realqkqk123fr/temp-backend/internal/inference"
	"github.com/realqkqk123fr/temp-backend/internal/security"
	"github.com/realqkqk123fr/temp-backend/internal/token"
)

// mockUserRepository is an in-memory UserRepository
type mockUserRepository struct {
	mu     sync.Mutex
	users  map[int64]*domain.User
	nextID int64
	err    error
}

func newMockUserRepository(users ...*domain.User) *mockUserRepository {
	r := &mockUserRepository{users: make(map[int64]*domain.User)}
	for _, u := range users {
		r.nextID++
		if u.ID == 0 {
			u.ID = r.nextID
		}
		r.users[u.ID] = u
	}
	return r
}

func (r *mockUserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	for _, u := range r.users {
		if u.Email == user.Email {
			return domain.ErrEmailExists
		}
	}
	r.nextID++
	user.ID = r.nextID
	r.users[user.ID] = user
	return nil
}

func (r *mockUserRepository) find(match func(*domain.User) bool) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *mockUserRepository) GetByID(_ context.Context, id int64) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.ID == id })
}

func (r *mockUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Email == email })
}

func (r *mockUserRepository) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Username == username })
}

func (r *mockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	u, err := r.GetByEmail(ctx, email)
	return u != nil, err
}

func (r *mockUserRepository) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return domain.ErrUserNotFound
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

// mockRecipeRepository is an in-memory RecipeRepository
type mockRecipeRepository struct {
	recipes map[int64]*domain.Recipe
	nextID  int64
	err     error
}

func newMockRecipeRepository(recipes ...*domain.Recipe) *mockRecipeRepository {
	r := &mockRecipeRepository{recipes: make(map[int64]*domain.Recipe), nextID: 100}
	for _, rc := range recipes {
		r.recipes[rc.ID] = rc
	}
	return r
}

func (r *mockRecipeRepository) Create(_ context.Context, recipe *domain.Recipe) error {
	if r.err != nil {
		return r.err
	}
	r.nextID++
	recipe.ID = r.nextID
	recipe.CreatedAt = time.Now()
	r.recipes[recipe.ID] = recipe
	return nil
}

func (r *mockRecipeRepository) GetByID(_ context.Context, id int64) (*domain.Recipe, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.recipes[id], nil
}

func (r *mockRecipeRepository) ListByUser(_ context.Context, userID int64) ([]*domain.Recipe, error) {
	var out []*domain.Recipe
	for _, rc := range r.recipes {
		if rc.UserID == userID {
			out = append(out, rc)
		}
	}
	return out, r.err
}

type mockNutritionRepository struct {
	byRecipe map[int64]*domain.Nutrition
	upserts  int
}

func newMockNutritionRepository() *mockNutritionRepository {
	return &mockNutritionRepository{byRecipe: make(map[int64]*domain.Nutrition)}
}

func (r *mockNutritionRepository) Upsert(_ context.Context, n *domain.Nutrition) error {
	r.upserts++
	n.ID = int64(r.upserts)
	r.byRecipe[n.RecipeID] = n
	return nil
}

func (r *mockNutritionRepository) GetByRecipeID(_ context.Context, recipeID int64) (*domain.Nutrition, error) {
	return r.byRecipe[recipeID], nil
}

type mockSatisfactionRepository struct {
	ratings map[[2]int64]*domain.Satisfaction
}

func newMockSatisfactionRepository() *mockSatisfactionRepository {
	return &mockSatisfactionRepository{ratings: make(map[[2]int64]*domain.Satisfaction)}
}

func (r *mockSatisfactionRepository) Upsert(_ context.Context, s *domain.Satisfaction) error {
	r.ratings[[2]int64{s.UserID, s.RecipeID}] = s
	return nil
}

func (r *mockSatisfactionRepository) ListByUser(_ context.Context, userID int64) ([]*domain.Satisfaction, error) {
	var out []*domain.Satisfaction
	for k, s := range r.ratings {
		if k[0] == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

// mockInference records calls and returns canned answers
type mockInference struct {
	recipe    *inference.Recipe
	nutrition *inference.Nutrition
	reply     *inference.ChatReply
	err       error

	generated   []*inference.GenerateRequest
	substituted []*inference.SubstituteRequest
	chats       []*inference.ChatRequest
	userInfos   []*inference.UserInfo
	fetched     []int64
}

func (m *mockInference) GenerateRecipe(_ context.Context, req *inference.GenerateRequest) (*inference.Recipe, error) {
	m.generated = append(m.generated, req)
	return m.recipe, m.err
}

func (m *mockInference) SubstituteIngredient(_ context.Context, req *inference.SubstituteRequest) (*inference.Recipe, error) {
	m.substituted = append(m.substituted, req)
	return m.recipe, m.err
}

func (m *mockInference) GetRecipe(_ context.Context, id int64) (*inference.Recipe, error) {
	m.fetched = append(m.fetched, id)
	return m.recipe, m.err
}

func (m *mockInference) GetNutrition(_ context.Context, id int64) (*inference.Nutrition, error) {
	m.fetched = append(m.fetched, id)
	return m.nutrition, m.err
}

func (m *mockInference) Chat(_ context.Context, req *inference.ChatRequest) (*inference.ChatReply, error) {
	m.chats = append(m.chats, req)
	return m.reply, m.err
}

func (m *mockInference) SendUserInfo(_ context.Context, info *inference.UserInfo) error {
	m.userInfos = append(m.userInfos, info)
	return m.err
}

type published struct {
	user, destination string
	payload           any
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []published
}

func (n *recordingNotifier) Publish(_ context.Context, user, destination string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, published{user, destination, payload})
}

type recordingEvents struct {
	events []domain.Event
	err    error
}

func (e *recordingEvents) Publish(_ context.Context, ev domain.Event) error {
	e.events = append(e.events, ev)
	return e.err
}

func (e *recordingEvents) Close() error { return nil }

type fakeTokens struct {
	issued []token.Subject
	err    error
}

func (f *fakeTokens) Issue(subject token.Subject, category token.Category) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.issued = append(f.issued, subject)
	return string(category) + "-token-" + subject.Username, nil
}

func (f *fakeTokens) RefreshTTL() time.Duration { return 14 * 24 * time.Hour }

func hashPassword(password string) string {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return string(h)
}

func persisted(u *domain.User) *security.Identity {
	return u.Identity()
}

func floatPtr(v float64) *float64 { return &v }

package checkout

import (
	"maps"
	"slices"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// CartReader отдаёт машине состояние корзины.
type CartReader interface {
	State() domain.CartState
}

// View — снимок машины для отображения.
type View struct {
	CurrentStep    Step        `json:"currentStep"`
	CompletedSteps []Step      `json:"completedSteps"`
	Errors         FieldErrors `json:"errors"`
	Form           FormState   `json:"form"`
}

// Machine — машина шагов оформления одной сессии.
type Machine struct {
	mu        sync.Mutex
	cart      CartReader
	current   Step
	completed map[Step]struct{}
	errors    FieldErrors
	form      FormState

	logger  *log.Entry
	metrics *metrics.CheckoutMetrics
}

// NewMachine создаёт машину на шаге Delivery с формой по умолчанию.
func NewMachine(cart CartReader, m *metrics.CheckoutMetrics, logger *log.Entry) *Machine {
	if logger == nil {
		logger = log.New().WithField("component", "checkout")
	}
	return &Machine{
		cart:      cart,
		current:   StepDelivery,
		completed: make(map[Step]struct{}),
		errors:    FieldErrors{},
		form:      DefaultForm(),
		logger:    logger,
		metrics:   m,
	}
}

// GoToStep проверяет текущий шаг и переходит на target.
// При ошибке проверки шаг не меняется, а ошибки текущего шага сохраняются.
// Несуществующий target отклоняется без изменения состояния.
func (m *Machine) GoToStep(target Step) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.goTo(target)
}

func (m *Machine) goTo(target Step) bool {
	if !target.Valid() {
		return false
	}

	errs := ValidateStep(m.current, m.form, m.cart.State())
	if !errs.Empty() {
		m.errors = errs
		m.metrics.RecordStepTransition(m.current.String(), false)
		m.logger.WithFields(log.Fields{
			"step":   m.current.String(),
			"target": target.String(),
			"fields": len(errs),
		}).Debug("step transition rejected")
		return false
	}

	m.completed[m.current] = struct{}{}
	m.metrics.RecordStepTransition(m.current.String(), true)
	m.current = target
	m.errors = FieldErrors{}
	return true
}

// NextStep вызывает GoToStep(current+1).
func (m *Machine) NextStep() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.goTo(m.current + 1)
}

// PrevStep возвращает на шаг назад без проверки. На первом шаге ничего не делает.
func (m *Machine) PrevStep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current > StepDelivery {
		m.current--
		m.errors = FieldErrors{}
	}
}

// CurrentStep возвращает текущий шаг.
func (m *Machine) CurrentStep() Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// CompletedSteps возвращает пройденные шаги по возрастанию.
func (m *Machine) CompletedSteps() []Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.completedLocked()
}

func (m *Machine) completedLocked() []Step {
	steps := slices.Collect(maps.Keys(m.completed))
	slices.Sort(steps)
	return steps
}

// Errors возвращает копию текущих ошибок.
func (m *Machine) Errors() FieldErrors {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.errors)
}

// Form возвращает копию формы.
func (m *Machine) Form() FormState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.form
}

// UpdateForm меняет форму и снимает ошибки с изменённых полей без повторной проверки.
func (m *Machine) UpdateForm(fn func(form *FormState), touched ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.form)
	for _, field := range touched {
		delete(m.errors, field)
	}
}

// ClearFieldError снимает ошибку одного поля.
func (m *Machine) ClearFieldError(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.errors, path)
}

// SetErrors показывает ошибки, найденные вне машины (например, при отправке заказа).
func (m *Machine) SetErrors(errs FieldErrors) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = maps.Clone(errs)
	if m.errors == nil {
		m.errors = FieldErrors{}
	}
}

// Reset возвращает машину в начальное состояние после завершённого заказа.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = StepDelivery
	m.completed = make(map[Step]struct{})
	m.errors = FieldErrors{}
	m.form = DefaultForm()
}

// View возвращает согласованный снимок машины.
func (m *Machine) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return View{
		CurrentStep:    m.current,
		CompletedSteps: m.completedLocked(),
		Errors:         maps.Clone(m.errors),
		Form:           m.form,
	}
}

package calendar

const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// Page описывает одну страницу элементов.
type Page[T any] struct {
	Items    []T // элементы на текущей странице
	Page     int // номер страницы (с 1)
	PageSize int // количество элементов на странице
	HasNext  bool
	HasPrev  bool
	Total    int // общее количество элементов
}

// NewPage оборачивает уже выбранную из БД страницу.
func NewPage[T any](items []T, total int64, page, pageSize int) Page[T] {
	page, pageSize = NormalizePage(page, pageSize)
	return Page[T]{
		Items:    items,
		Page:     page,
		PageSize: pageSize,
		HasNext:  int64(page*pageSize) < total,
		HasPrev:  page > 1,
		Total:    int(total),
	}
}

// NormalizePage подставляет дефолты для номера и размера страницы.
func NormalizePage(page, pageSize int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// Offset returns limit/offset for a 1-based page.
func Offset(page, pageSize int) (limit, offset int) {
	page, pageSize = NormalizePage(page, pageSize)
	return pageSize, (page - 1) * pageSize
}

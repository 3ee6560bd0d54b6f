package store

import (
	"time"

	"github.com/shubhsaxena/directory-assistant/internal/models"
)

// SeedData returns the demo directory. Event, activity and task times are
// relative to now so the default "upcoming" lookups always find something.
func SeedData(now time.Time) *Dataset {
	now = now.UTC().Truncate(time.Minute)
	day := 24 * time.Hour
	at := func(days int, hour int) time.Time {
		d := now.Add(time.Duration(days) * day)
		return time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, time.UTC)
	}

	return &Dataset{
		Employees: []models.Employee{
			{ID: 1, Name: "Иван", Surname: "Иванов", Position: "Разработчик", Department: "IT",
				Email: "ivan@company.com", Phone: "+7-999-123-45-67", Skills: "Python, SQL, Docker",
				Interests: "Программирование, чтение", Birthday: time.Date(1990, 5, 15, 0, 0, 0, 0, time.UTC)},
			{ID: 2, Name: "Мария", Surname: "Петрова", Position: "HR-менеджер", Department: "HR",
				Email: "maria@company.com", Phone: "+7-999-765-43-21", Skills: "Рекрутинг, обучение",
				Interests: "Психология, путешествия", Birthday: time.Date(1988, 8, 20, 0, 0, 0, 0, time.UTC)},
			{ID: 3, Name: "Алексей", Surname: "Смирнов", Position: "Senior Developer", Department: "IT",
				Email: "alexey@company.com", Skills: "Go, Django, Kubernetes",
				Interests: "Альпинизм", Birthday: time.Date(1992, 3, 10, 0, 0, 0, 0, time.UTC)},
			{ID: 4, Name: "Елена", Surname: "Кузнецова", Position: "Marketing Specialist", Department: "Marketing",
				Email: "elena@company.com", Skills: "SEO, аналитика", Interests: "Фотография",
				Birthday: time.Date(1995, 11, 30, 0, 0, 0, 0, time.UTC)},
			{ID: 5, Name: "Дмитрий", Surname: "Козлов", Position: "Sales Manager", Department: "Sales",
				Email: "dmitry@company.com", Skills: "Переговоры, CRM", Interests: "Футбол",
				Birthday: time.Date(1991, 7, 20, 0, 0, 0, 0, time.UTC)},
			{ID: 6, Name: "Ольга", Surname: "Соколова", Position: "Тестировщик", Department: "IT",
				Email: "olga@company.com", Skills: "Selenium, Python", Interests: "Настольные игры",
				Birthday: time.Date(1994, 2, 4, 0, 0, 0, 0, time.UTC)},
		},
		Events: []models.Event{
			{ID: 1, Title: "Встреча команды", Description: "Еженедельная встреча команды разработки",
				StartTime: at(1, 10), EndTime: at(1, 11), Location: "Конференц-зал", Type: "meeting",
				Organizer: "Иван Иванов", MaxParticipants: 10, Participants: []string{"Иван Иванов", "Алексей Смирнов"}},
			{ID: 2, Title: "Презентация проекта", Description: "Презентация нового проекта",
				StartTime: at(3, 15), EndTime: at(3, 16), Location: "Конференц-зал", Type: "presentation",
				Organizer: "Алексей Смирнов", MaxParticipants: 30},
			{ID: 3, Title: "Тренинг по продажам", Description: "Тренинг для отдела продаж",
				StartTime: at(5, 12), EndTime: at(5, 15), Location: "Переговорная 2", Type: "training",
				Organizer: "Дмитрий Козлов", MaxParticipants: 15},
			{ID: 4, Title: "Корпоратив", Description: "Ежегодный корпоратив компании",
				StartTime: at(20, 18), EndTime: at(20, 23), Location: "Ресторан", Type: "team_building",
				Organizer: "Мария Петрова", MaxParticipants: 100},
		},
		Tasks: []models.Task{
			{ID: 1, Title: "Обновить документацию", Description: "Обновить документацию по API",
				Status: models.StatusTodo, Priority: 2, Assignee: "Иван Иванов", DueDate: at(7, 18),
				Tags: []string{"docs", "api"}},
			{ID: 2, Title: "Исправить баг авторизации", Description: "Пользователи не могут войти через SSO",
				Status: models.StatusInProgress, Priority: 3, Assignee: "Алексей Смирнов", DueDate: at(2, 18),
				Tags: []string{"bug", "auth"}},
			{ID: 3, Title: "Подготовить отчет", Description: "Квартальный отчет по продажам",
				Status: models.StatusDone, Priority: 1, Assignee: "Дмитрий Козлов", DueDate: at(-1, 18),
				Tags: []string{"report"}},
			{ID: 4, Title: "Провести ревью кода", Description: "Ревью модуля платежей",
				Status: models.StatusTodo, Priority: 2, Assignee: "Ольга Соколова", DueDate: at(4, 18),
				Tags: []string{"review"}},
		},
		Activities: []models.Activity{
			{ID: 1, Title: "Турнир по настольному теннису", Description: "Еженедельный турнир по настольному теннису",
				Type: "sports", StartTime: at(2, 17), EndTime: at(2, 19), Location: "Спортзал",
				Organizer: "Мария Петрова", MaxParticipants: 8},
			{ID: 2, Title: "Киноклуб", Description: "Просмотр и обсуждение фильмов",
				Type: "culture", StartTime: at(4, 19), EndTime: at(4, 22), Location: "Переговорная 1",
				Organizer: "Елена Кузнецова", MaxParticipants: 20},
			{ID: 3, Title: "Вечер настольных игр", Description: "Настольные игры после работы",
				Type: "games", StartTime: at(6, 18), EndTime: at(6, 21), Location: "Кухня",
				Organizer: "Ольга Соколова", MaxParticipants: 12},
		},
		GeneralInfo: []models.GeneralInfo{
			{ID: 1, Title: "Правила работы", Content: "Основные правила работы в компании", Category: "Правила"},
			{ID: 2, Title: "Пропуск в офис", Content: "Пропуск выдает служба безопасности на первом этаже", Category: "Офис"},
			{ID: 3, Title: "Оформление отпуска", Content: "Заявление на отпуск подается за две недели", Category: "Отпуск"},
			{ID: 4, Title: "ДМС", Content: "Полис ДМС оформляется после испытательного срока", Category: "Льготы"},
		},
	}
}

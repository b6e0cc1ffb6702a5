package achievement

import (
	"fmt"
	"text/template"
)

const hour = 3600

// Categories group the catalog for display.
const (
	CategoryTime   = "time"
	CategoryGames  = "games"
	CategoryStreak = "streak"
)

// Definition is one catalog row. Check reports whether the metrics earn
// the achievement and, for game-specific ones, which game did it.
type Definition struct {
	Key      string
	Title    string
	Category string
	Check    func(Metrics) (ok bool, game string)
	Message  *template.Template
}

// MessageData is what message templates can reference.
type MessageData struct {
	User  string
	Game  string
	Title string
}

func def(key, title, category, message string, check func(Metrics) (bool, string)) Definition {
	return Definition{
		Key:      key,
		Title:    title,
		Category: category,
		Check:    check,
		Message:  template.Must(template.New(key).Parse(message)),
	}
}

func dayHours(h int64) func(Metrics) (bool, string) {
	return func(m Metrics) (bool, string) { return m.MaxDaySeconds >= h*hour, "" }
}

func gamesStarted(n int) func(Metrics) (bool, string) {
	return func(m Metrics) (bool, string) { return m.GamesStarted >= n, "" }
}

func gamesCompleted(n int) func(Metrics) (bool, string) {
	return func(m Metrics) (bool, string) { return m.GamesCompleted >= n, "" }
}

func gamesInADay(n int) func(Metrics) (bool, string) {
	return func(m Metrics) (bool, string) { return m.MaxDayGames >= n, "" }
}

func streak(n int) Definition {
	return def(
		fmt.Sprintf("STREAK_%d_DAYS", n),
		fmt.Sprintf("%d days in a row", n),
		CategoryStreak,
		fmt.Sprintf("🔥 *{{.User}}* has played %d days in a row. *{{.Title}}*", n),
		func(m Metrics) (bool, string) { return m.CurrentStreak >= n, "" },
	)
}

// Catalog is every achievement the tracker knows about, in evaluation order.
var Catalog = []Definition{
	def("PLAYED_LESS_5_MIN", "Opened it by mistake", CategoryTime,
		"🙈 *{{.User}}* played _{{.Game}}_ for less than five minutes. *{{.Title}}*",
		func(m Metrics) (bool, string) {
			if m.ShortSession == nil {
				return false, ""
			}
			return true, m.ShortSession.Game
		}),
	def("PLAYED_8_HOURS_DAY", "A full working day", CategoryTime,
		"💼 *{{.User}}* played 8 hours (or more) in a single day. *{{.Title}}*",
		dayHours(8)),
	def("PLAYED_12_HOURS_DAY", "Twelve hour shift", CategoryTime,
		"🥱 *{{.User}}* played 12 hours (or more) in a single day. *{{.Title}}*",
		dayHours(12)),
	def("PLAYED_16_HOURS_DAY", "No breaks allowed", CategoryTime,
		"🧟 *{{.User}}* played 16 hours (or more) in a single day. *{{.Title}}*",
		dayHours(16)),
	def("PLAYED_8_HOURS_GAME_DAY", "Playing is my job", CategoryTime,
		"🎯 *{{.User}}* just played _{{.Game}}_ for 8 hours (or more) in one day. Somebody is enjoying it. *{{.Title}}*",
		func(m Metrics) (bool, string) { return m.MaxGameDay.Seconds >= 8*hour, m.MaxGameDay.Game }),
	def("PLAYED_8_HOURS_GAME_DAY_ONE_SESSION", "Playing is my job (non-stop)", CategoryTime,
		"⏱️ *{{.User}}* just played _{{.Game}}_ for 8 hours (or more) without stopping. *{{.Title}}*",
		func(m Metrics) (bool, string) { return m.LongestSession.Seconds >= 8*hour, m.LongestSession.Game }),
	def("PLAYED_100_HOURS_GAME", "A hundred hours in", CategoryTime,
		"💯 *{{.User}}* has spent 100 hours on _{{.Game}}_. *{{.Title}}*",
		func(m Metrics) (bool, string) { return m.MaxGame.Seconds >= 100*hour, m.MaxGame.Game }),
	def("PLAYED_1000_HOURS", "A thousand hours", CategoryTime,
		"⌛ *{{.User}}* has tracked 1000 hours of play. *{{.Title}}*",
		func(m Metrics) (bool, string) { return m.TotalSeconds >= 1000*hour, "" }),
	def("PLAYED_42_GAMES", "The answer", CategoryGames,
		"🌌 *{{.User}}* has played the magic number of 42 games. No answer to life, the universe and everything, but plenty of free time. *{{.Title}}*",
		gamesStarted(42)),
	def("PLAYED_100_GAMES", "100 games (played)", CategoryGames,
		"📚 *{{.User}}* has started 100 games. *{{.Title}}*",
		gamesStarted(100)),
	def("COMPLETED_42_GAMES", "The answer (for real)", CategoryGames,
		"🏁 Starting 42 games is one thing, finishing them is another. *{{.User}}* just completed 42. *{{.Title}}*",
		gamesCompleted(42)),
	def("COMPLETED_100_GAMES", "100 games (completed)", CategoryGames,
		"👑 *{{.User}}* has completed 100 games. *{{.Title}}*",
		gamesCompleted(100)),
	def("PLAYED_5_GAMES_DAY", "Indecisive", CategoryGames,
		"🔀 *{{.User}}* played 5 different games in a single day. *{{.Title}}*",
		gamesInADay(5)),
	def("PLAYED_10_GAMES_DAY", "Very indecisive", CategoryGames,
		"🌀 *{{.User}}* played 10 different games in a single day. *{{.Title}}*",
		gamesInADay(10)),
	streak(7),
	streak(15),
	streak(30),
	streak(60),
	streak(100),
	streak(200),
	streak(300),
	streak(365),
}

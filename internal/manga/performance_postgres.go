package manga

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

const wordPerformanceSQL = `
SELECT w.id, w.japanese, w.meaning,
       COUNT(*) AS total,
       COUNT(*) FILTER (WHERE a.correct) AS correct
FROM panel_words pw
JOIN words w ON w.id = pw.word_id
JOIN attempts a ON a.concept_id = w.id AND a.concept_kind = 'word' AND a.learner_id = $2
WHERE pw.panel_id = $1
GROUP BY w.id, w.japanese, w.meaning`

const grammarPerformanceSQL = `
SELECT g.id, g.name, g.pattern,
       COUNT(*) AS total,
       COUNT(*) FILTER (WHERE a.correct) AS correct
FROM panel_grammar_structures pg
JOIN grammar_structures g ON g.id = pg.grammar_id
JOIN attempts a ON a.concept_id = g.id AND a.concept_kind = 'grammar' AND a.learner_id = $2
WHERE pg.panel_id = $1
GROUP BY g.id, g.name, g.pattern`

// FetchPerformance checks the panel exists, then runs the word and grammar
// aggregations concurrently.
func (s *PostgresStore) FetchPerformance(ctx context.Context, learnerID, panelID string) (*Performance, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM panels WHERE id = $1)`, panelID,
	).Scan(&exists); err != nil {
		return nil, unavailable("check panel", err)
	}
	if !exists {
		return nil, fmt.Errorf("panel %s: %w", panelID, ErrNotFound)
	}

	perf := &Performance{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		perf.Words, err = s.conceptPerformance(gctx, "query word performance", wordPerformanceSQL, KindWord, learnerID, panelID)
		return err
	})
	g.Go(func() error {
		var err error
		perf.Grammar, err = s.conceptPerformance(gctx, "query grammar performance", grammarPerformanceSQL, KindGrammar, learnerID, panelID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return perf, nil
}

func (s *PostgresStore) conceptPerformance(ctx context.Context, op, sql string, kind ConceptKind, learnerID, panelID string) ([]ConceptPerformance, error) {
	rows, err := s.pool.Query(ctx, sql, panelID, learnerID)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer rows.Close()

	out := []ConceptPerformance{}
	for rows.Next() {
		var id, display, secondary string
		var total, correct int64
		if err := rows.Scan(&id, &display, &secondary, &total, &correct); err != nil {
			return nil, unavailable(op, err)
		}
		out = append(out, newConceptPerformance(ConceptRef{ID: id, Kind: kind}, display, secondary, int(correct), int(total)))
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}
	sortWeakestFirst(out)
	return out, nil
}

// RecordAttempt inserts the attempt if the referenced concept exists.
func (s *PostgresStore) RecordAttempt(ctx context.Context, a Attempt) error {
	if err := validateAttempt(a); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	table := "words"
	if a.Concept.Kind == KindGrammar {
		table = "grammar_structures"
	}

	var createdAt any
	if !a.CreatedAt.IsZero() {
		createdAt = a.CreatedAt
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO attempts (learner_id, concept_kind, concept_id, correct, created_at)
		 SELECT $1, $2, $3, $4, COALESCE($5::timestamptz, now())
		 WHERE EXISTS (SELECT 1 FROM `+table+` WHERE id = $3)`,
		a.LearnerID, string(a.Concept.Kind), a.Concept.ID, a.Correct, createdAt,
	)
	if err != nil {
		return unavailable("record attempt", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", a.Concept.Kind, a.Concept.ID, ErrNotFound)
	}
	return nil
}

// RecentMistakes returns the latest incorrect attempt per concept.
func (s *PostgresStore) RecentMistakes(ctx context.Context, learnerID string, kind ConceptKind, limit int) ([]Mistake, error) {
	if learnerID == "" {
		return nil, fmt.Errorf("%w: learner id is required", ErrInvalidInput)
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: concept kind %q", ErrInvalidInput, kind)
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var lim any
	if limit > 0 {
		lim = limit
	}

	const missed = `
		SELECT concept_id, MAX(created_at) AS missed_at
		FROM attempts
		WHERE learner_id = $1 AND concept_kind = $2 AND NOT correct
		GROUP BY concept_id`

	var sql string
	if kind == KindWord {
		sql = `SELECT w.id, w.japanese, w.reading, w.meaning, w.part_of_speech, w.jlpt_level, m.missed_at
		       FROM (` + missed + `) m
		       JOIN words w ON w.id = m.concept_id
		       ORDER BY m.missed_at DESC, w.id
		       LIMIT $3`
	} else {
		sql = `SELECT g.id, g.name, g.pattern, g.explanation, g.jlpt_level, m.missed_at
		       FROM (` + missed + `) m
		       JOIN grammar_structures g ON g.id = m.concept_id
		       ORDER BY m.missed_at DESC, g.id
		       LIMIT $3`
	}

	rows, err := s.pool.Query(ctx, sql, learnerID, string(kind), lim)
	if err != nil {
		return nil, unavailable("query mistakes", err)
	}
	defer rows.Close()

	out := []Mistake{}
	for rows.Next() {
		m := Mistake{}
		if kind == KindWord {
			var w Word
			err = rows.Scan(&w.ID, &w.Japanese, &w.Reading, &w.Meaning, &w.PartOfSpeech, &w.JLPT, &m.MissedAt)
			m.Concept, m.Word = w.Ref(), &w
		} else {
			var g GrammarStructure
			err = rows.Scan(&g.ID, &g.Name, &g.Pattern, &g.Explanation, &g.JLPT, &m.MissedAt)
			m.Concept, m.Grammar = g.Ref(), &g
		}
		if err != nil {
			return nil, unavailable("scan mistake", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("query mistakes", err)
	}
	return out, nil
}

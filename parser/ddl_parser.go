package parser

func (p *parser) parseCreate() (Statement, error) {
	p.advance() // CREATE

	orReplace := false
	if p.isKeyword("or") {
		p.advance()
		if err := p.expectKeyword("replace"); err != nil {
			return nil, err
		}
		orReplace = true
	}

	temporary := false
	if p.eatKeyword("temporary") || p.eatKeyword("temp") {
		temporary = true
	}

	materialized := p.eatKeyword("materialized")

	switch {
	case p.isKeyword("table"):
		p.advance()
		return p.parseCreateTableTail(temporary)
	case p.isKeyword("view"):
		p.advance()
		return p.parseCreateViewTail(orReplace, materialized)
	default:
		return nil, &ParseError{Offset: p.cur().Start, Message: "unsupported CREATE statement"}
	}
}

func (p *parser) parseCreateTableTail(temporary bool) (Statement, error) {
	ifNotExists := false
	if p.eatKeyword("if") {
		if err := p.expectKeyword("not"); err != nil {
			return nil, err
		}
		if err := p.expectKeyword("exists"); err != nil {
			return nil, err
		}
		ifNotExists = true
	}

	name, err := p.parseTableName()
	if err != nil {
		return nil, err
	}

	ct := &CreateTable{Name: name, Temporary: temporary, IfNotExists: ifNotExists}

	if p.isKeyword("as") {
		p.advance()
		sel, err := p.parseSetOperation()
		if err != nil {
			return nil, err
		}
		ct.AsSelect = sel
		return ct, nil
	}

	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	for {
		if p.isKeyword("primary") || p.isKeyword("foreign") || p.isKeyword("unique") ||
			p.isKeyword("check") || p.isKeyword("constraint") {
			c, err := p.parseTableConstraint()
			if err != nil {
				return nil, err
			}
			ct.Constraints = append(ct.Constraints, c)
		} else {
			col, err := p.parseColumnDef()
			if err != nil {
				return nil, err
			}
			ct.Columns = append(ct.Columns, col)
		}
		if p.eatPunct(",") {
			continue
		}
		break
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return ct, nil
}

func (p *parser) parseColumnDef() (ColumnDef, error) {
	name, err := p.parseIdentName()
	if err != nil {
		return ColumnDef{}, err
	}
	typeName, err := p.parseTypeName()
	if err != nil {
		return ColumnDef{}, err
	}
	col := ColumnDef{Name: name, TypeName: typeName}

	for {
		switch {
		case p.eatKeyword("not"):
			if err := p.expectKeyword("null"); err != nil {
				return ColumnDef{}, err
			}
			col.NotNull = true
		case p.eatKeyword("null"):
			// explicit NULL, no-op
		case p.isKeyword("primary"):
			p.advance()
			if err := p.expectKeyword("key"); err != nil {
				return ColumnDef{}, err
			}
			col.PrimaryKey = true
		case p.eatKeyword("unique"):
			col.Unique = true
		case p.eatKeyword("default"):
			expr, err := p.parseUnary()
			if err != nil {
				return ColumnDef{}, err
			}
			col.Default = expr
			col.HasDefault = true
		case p.isKeyword("references"):
			p.advance()
			tbl, err := p.parseTableName()
			if err != nil {
				return ColumnDef{}, err
			}
			fk := &ForeignKeyClause{Table: tbl}
			if p.eatPunct("(") {
				for {
					c, err := p.parseIdentName()
					if err != nil {
						return ColumnDef{}, err
					}
					fk.Columns = append(fk.Columns, c)
					if p.eatPunct(",") {
						continue
					}
					break
				}
				if err := p.expectPunct(")"); err != nil {
					return ColumnDef{}, err
				}
			}
			col.References = fk
		default:
			return col, nil
		}
	}
}

func (p *parser) parseTableConstraint() (TableConstraint, error) {
	if p.eatKeyword("constraint") {
		if _, err := p.parseIdentName(); err != nil {
			return TableConstraint{}, err
		}
	}

	switch {
	case p.eatKeyword("primary"):
		if err := p.expectKeyword("key"); err != nil {
			return TableConstraint{}, err
		}
		cols, err := p.parseColumnList()
		if err != nil {
			return TableConstraint{}, err
		}
		return TableConstraint{Kind: ConstraintPrimaryKey, Columns: cols}, nil

	case p.eatKeyword("unique"):
		cols, err := p.parseColumnList()
		if err != nil {
			return TableConstraint{}, err
		}
		return TableConstraint{Kind: ConstraintUnique, Columns: cols}, nil

	case p.eatKeyword("check"):
		if err := p.expectPunct("("); err != nil {
			return TableConstraint{}, err
		}
		if _, err := p.parseExpr(); err != nil {
			return TableConstraint{}, err
		}
		if err := p.expectPunct(")"); err != nil {
			return TableConstraint{}, err
		}
		return TableConstraint{Kind: ConstraintCheck}, nil

	case p.eatKeyword("foreign"):
		if err := p.expectKeyword("key"); err != nil {
			return TableConstraint{}, err
		}
		cols, err := p.parseColumnList()
		if err != nil {
			return TableConstraint{}, err
		}
		if err := p.expectKeyword("references"); err != nil {
			return TableConstraint{}, err
		}
		refTable, err := p.parseTableName()
		if err != nil {
			return TableConstraint{}, err
		}
		var refCols []string
		if p.isPunct("(") {
			refCols, err = p.parseColumnList()
			if err != nil {
				return TableConstraint{}, err
			}
		}
		return TableConstraint{
			Kind:              ConstraintForeignKey,
			Columns:           cols,
			ReferencedTable:   refTable,
			HasReferenced:     true,
			ReferencedColumns: refCols,
		}, nil

	default:
		return TableConstraint{}, &ParseError{Offset: p.cur().Start, Message: "unsupported table constraint"}
	}
}

func (p *parser) parseColumnList() ([]string, error) {
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var cols []string
	for {
		c, err := p.parseIdentName()
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
		if p.eatPunct(",") {
			continue
		}
		break
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return cols, nil
}

func (p *parser) parseCreateViewTail(orReplace, materialized bool) (Statement, error) {
	name, err := p.parseTableName()
	if err != nil {
		return nil, err
	}
	cv := &CreateView{Name: name, OrReplace: orReplace, Materialized: materialized}

	if p.eatPunct("(") {
		for {
			col, err := p.parseIdentName()
			if err != nil {
				return nil, err
			}
			cv.ColumnAliases = append(cv.ColumnAliases, col)
			if p.eatPunct(",") {
				continue
			}
			break
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
	}

	if err := p.expectKeyword("as"); err != nil {
		return nil, err
	}
	def, err := p.parseSelectWithCTEs()
	if err != nil {
		return nil, err
	}
	sel, ok := def.(SelectStatement)
	if !ok {
		return nil, &ParseError{Offset: p.cur().Start, Message: "CREATE VIEW definition is not a query"}
	}
	cv.Definition = sel
	return cv, nil
}

func (p *parser) parseInsert() (Statement, error) {
	p.advance() // INSERT
	if err := p.expectKeyword("into"); err != nil {
		return nil, err
	}
	tbl, err := p.parseTableName()
	if err != nil {
		return nil, err
	}
	ins := &InsertStatement{Table: tbl}

	if p.eatPunct("(") {
		for {
			col, err := p.parseIdentName()
			if err != nil {
				return nil, err
			}
			ins.Columns = append(ins.Columns, col)
			if p.eatPunct(",") {
				continue
			}
			break
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
	}

	if p.isKeyword("select") || p.isKeyword("with") {
		sel, err := p.parseSelectWithCTEs()
		if err != nil {
			return nil, err
		}
		ss, ok := sel.(SelectStatement)
		if !ok {
			return nil, &ParseError{Offset: p.cur().Start, Message: "INSERT source is not a query"}
		}
		ins.Select = ss
		return ins, nil
	}

	if err := p.expectKeyword("values"); err != nil {
		return nil, err
	}
	for {
		if err := p.expectPunct("("); err != nil {
			return nil, err
		}
		var row []Expr
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			row = append(row, e)
			if p.eatPunct(",") {
				continue
			}
			break
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		ins.Values = append(ins.Values, row)
		if p.eatPunct(",") {
			continue
		}
		break
	}
	return ins, nil
}

func (p *parser) parseDrop() (Statement, error) {
	p.advance() // DROP
	var kind DropObjectKind
	switch {
	case p.eatKeyword("table"):
		kind = DropTable
	case p.eatKeyword("view"):
		kind = DropView
	default:
		return nil, &ParseError{Offset: p.cur().Start, Message: "unsupported DROP statement"}
	}
	ifExists := false
	if p.eatKeyword("if") {
		if err := p.expectKeyword("exists"); err != nil {
			return nil, err
		}
		ifExists = true
	}
	name, err := p.parseTableName()
	if err != nil {
		return nil, err
	}
	return &DropStatement{Kind: kind, Name: name, IfExists: ifExists}, nil
}

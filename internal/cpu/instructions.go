package cpu

type execFunc func(cpu *CPU, o operand) int

// opcode describes one entry of the dispatch table. exec returns cycles
// beyond the base count, which only branches use.
type opcode struct {
	name      string
	mode      AddressingMode
	cycles    uint8
	pageCycle bool
	exec      execFunc
}

var opcodes [256]opcode

// Name returns the mnemonic for an opcode byte. Unofficial opcodes that
// are executed as NOPs report "NOP*".
func Name(code uint8) string { return opcodes[code].name }

func def(code uint8, name string, mode AddressingMode, cycles uint8, exec execFunc) {
	opcodes[code] = opcode{name, mode, cycles, false, exec}
}

// defP defines a read instruction that takes one more cycle when indexing
// crosses a page.
func defP(code uint8, name string, mode AddressingMode, cycles uint8, exec execFunc) {
	opcodes[code] = opcode{name, mode, cycles, true, exec}
}

// read defines the eight addressing modes shared by the ALU instructions.
func read(name string, exec execFunc, imm, zp, zpx, abs, absx, absy, izx, izy uint8) {
	def(imm, name, Immediate, 2, exec)
	def(zp, name, ZeroPage, 3, exec)
	def(zpx, name, ZeroPageX, 4, exec)
	def(abs, name, Absolute, 4, exec)
	defP(absx, name, AbsoluteX, 4, exec)
	defP(absy, name, AbsoluteY, 4, exec)
	def(izx, name, IndexedIndirect, 6, exec)
	defP(izy, name, IndirectIndexed, 5, exec)
}

// shift defines accumulator and memory forms of a shift or rotate.
func shift(name string, exec execFunc, acc, zp, zpx, abs, absx uint8) {
	def(acc, name, Accumulator, 2, exec)
	def(zp, name, ZeroPage, 5, exec)
	def(zpx, name, ZeroPageX, 6, exec)
	def(abs, name, Absolute, 6, exec)
	def(absx, name, AbsoluteX, 7, exec)
}

// rmw defines the seven forms of an unofficial read-modify-write opcode.
func rmw(name string, exec execFunc, zp, zpx, abs, absx, absy, izx, izy uint8) {
	def(zp, name, ZeroPage, 5, exec)
	def(zpx, name, ZeroPageX, 6, exec)
	def(abs, name, Absolute, 6, exec)
	def(absx, name, AbsoluteX, 7, exec)
	def(absy, name, AbsoluteY, 7, exec)
	def(izx, name, IndexedIndirect, 8, exec)
	def(izy, name, IndirectIndexed, 8, exec)
}

func init() {
	for i := range opcodes {
		opcodes[i] = opcode{"NOP*", Implied, 2, false, (*CPU).nop}
	}

	// Load/Store
	read("LDA", (*CPU).lda, 0xA9, 0xA5, 0xB5, 0xAD, 0xBD, 0xB9, 0xA1, 0xB1)
	def(0xA2, "LDX", Immediate, 2, (*CPU).ldx)
	def(0xA6, "LDX", ZeroPage, 3, (*CPU).ldx)
	def(0xB6, "LDX", ZeroPageY, 4, (*CPU).ldx)
	def(0xAE, "LDX", Absolute, 4, (*CPU).ldx)
	defP(0xBE, "LDX", AbsoluteY, 4, (*CPU).ldx)
	def(0xA0, "LDY", Immediate, 2, (*CPU).ldy)
	def(0xA4, "LDY", ZeroPage, 3, (*CPU).ldy)
	def(0xB4, "LDY", ZeroPageX, 4, (*CPU).ldy)
	def(0xAC, "LDY", Absolute, 4, (*CPU).ldy)
	defP(0xBC, "LDY", AbsoluteX, 4, (*CPU).ldy)

	def(0x85, "STA", ZeroPage, 3, (*CPU).sta)
	def(0x95, "STA", ZeroPageX, 4, (*CPU).sta)
	def(0x8D, "STA", Absolute, 4, (*CPU).sta)
	def(0x9D, "STA", AbsoluteX, 5, (*CPU).sta)
	def(0x99, "STA", AbsoluteY, 5, (*CPU).sta)
	def(0x81, "STA", IndexedIndirect, 6, (*CPU).sta)
	def(0x91, "STA", IndirectIndexed, 6, (*CPU).sta)
	def(0x86, "STX", ZeroPage, 3, (*CPU).stx)
	def(0x96, "STX", ZeroPageY, 4, (*CPU).stx)
	def(0x8E, "STX", Absolute, 4, (*CPU).stx)
	def(0x84, "STY", ZeroPage, 3, (*CPU).sty)
	def(0x94, "STY", ZeroPageX, 4, (*CPU).sty)
	def(0x8C, "STY", Absolute, 4, (*CPU).sty)

	// Arithmetic and logic
	read("ADC", (*CPU).adc, 0x69, 0x65, 0x75, 0x6D, 0x7D, 0x79, 0x61, 0x71)
	read("SBC", (*CPU).sbc, 0xE9, 0xE5, 0xF5, 0xED, 0xFD, 0xF9, 0xE1, 0xF1)
	def(0xEB, "SBC*", Immediate, 2, (*CPU).sbc)
	read("AND", (*CPU).and, 0x29, 0x25, 0x35, 0x2D, 0x3D, 0x39, 0x21, 0x31)
	read("ORA", (*CPU).ora, 0x09, 0x05, 0x15, 0x0D, 0x1D, 0x19, 0x01, 0x11)
	read("EOR", (*CPU).eor, 0x49, 0x45, 0x55, 0x4D, 0x5D, 0x59, 0x41, 0x51)
	read("CMP", (*CPU).cmp, 0xC9, 0xC5, 0xD5, 0xCD, 0xDD, 0xD9, 0xC1, 0xD1)
	def(0xE0, "CPX", Immediate, 2, (*CPU).cpx)
	def(0xE4, "CPX", ZeroPage, 3, (*CPU).cpx)
	def(0xEC, "CPX", Absolute, 4, (*CPU).cpx)
	def(0xC0, "CPY", Immediate, 2, (*CPU).cpy)
	def(0xC4, "CPY", ZeroPage, 3, (*CPU).cpy)
	def(0xCC, "CPY", Absolute, 4, (*CPU).cpy)
	def(0x24, "BIT", ZeroPage, 3, (*CPU).bit)
	def(0x2C, "BIT", Absolute, 4, (*CPU).bit)

	shift("ASL", (*CPU).asl, 0x0A, 0x06, 0x16, 0x0E, 0x1E)
	shift("LSR", (*CPU).lsr, 0x4A, 0x46, 0x56, 0x4E, 0x5E)
	shift("ROL", (*CPU).rol, 0x2A, 0x26, 0x36, 0x2E, 0x3E)
	shift("ROR", (*CPU).ror, 0x6A, 0x66, 0x76, 0x6E, 0x7E)

	def(0xE6, "INC", ZeroPage, 5, (*CPU).inc)
	def(0xF6, "INC", ZeroPageX, 6, (*CPU).inc)
	def(0xEE, "INC", Absolute, 6, (*CPU).inc)
	def(0xFE, "INC", AbsoluteX, 7, (*CPU).inc)
	def(0xC6, "DEC", ZeroPage, 5, (*CPU).dec)
	def(0xD6, "DEC", ZeroPageX, 6, (*CPU).dec)
	def(0xCE, "DEC", Absolute, 6, (*CPU).dec)
	def(0xDE, "DEC", AbsoluteX, 7, (*CPU).dec)
	def(0xE8, "INX", Implied, 2, (*CPU).inx)
	def(0xCA, "DEX", Implied, 2, (*CPU).dex)
	def(0xC8, "INY", Implied, 2, (*CPU).iny)
	def(0x88, "DEY", Implied, 2, (*CPU).dey)

	// Transfers and stack
	def(0xAA, "TAX", Implied, 2, (*CPU).tax)
	def(0x8A, "TXA", Implied, 2, (*CPU).txa)
	def(0xA8, "TAY", Implied, 2, (*CPU).tay)
	def(0x98, "TYA", Implied, 2, (*CPU).tya)
	def(0xBA, "TSX", Implied, 2, (*CPU).tsx)
	def(0x9A, "TXS", Implied, 2, (*CPU).txs)
	def(0x48, "PHA", Implied, 3, (*CPU).pha)
	def(0x68, "PLA", Implied, 4, (*CPU).pla)
	def(0x08, "PHP", Implied, 3, (*CPU).php)
	def(0x28, "PLP", Implied, 4, (*CPU).plp)

	// Flags
	def(0x18, "CLC", Implied, 2, func(c *CPU, _ operand) int { c.C = false; return 0 })
	def(0x38, "SEC", Implied, 2, func(c *CPU, _ operand) int { c.C = true; return 0 })
	def(0x58, "CLI", Implied, 2, func(c *CPU, _ operand) int { c.I = false; return 0 })
	def(0x78, "SEI", Implied, 2, func(c *CPU, _ operand) int { c.I = true; return 0 })
	def(0xB8, "CLV", Implied, 2, func(c *CPU, _ operand) int { c.V = false; return 0 })
	def(0xD8, "CLD", Implied, 2, func(c *CPU, _ operand) int { c.D = false; return 0 })
	def(0xF8, "SED", Implied, 2, func(c *CPU, _ operand) int { c.D = true; return 0 })

	// Control flow
	def(0x4C, "JMP", Absolute, 3, (*CPU).jmp)
	def(0x6C, "JMP", Indirect, 5, (*CPU).jmp)
	def(0x20, "JSR", Absolute, 6, (*CPU).jsr)
	def(0x60, "RTS", Implied, 6, (*CPU).rts)
	def(0x40, "RTI", Implied, 6, (*CPU).rti)
	def(0x00, "BRK", Implied, 7, (*CPU).brk)
	def(0xEA, "NOP", Implied, 2, (*CPU).nop)

	def(0x90, "BCC", Relative, 2, branch(func(c *CPU) bool { return !c.C }))
	def(0xB0, "BCS", Relative, 2, branch(func(c *CPU) bool { return c.C }))
	def(0xD0, "BNE", Relative, 2, branch(func(c *CPU) bool { return !c.Z }))
	def(0xF0, "BEQ", Relative, 2, branch(func(c *CPU) bool { return c.Z }))
	def(0x10, "BPL", Relative, 2, branch(func(c *CPU) bool { return !c.N }))
	def(0x30, "BMI", Relative, 2, branch(func(c *CPU) bool { return c.N }))
	def(0x50, "BVC", Relative, 2, branch(func(c *CPU) bool { return !c.V }))
	def(0x70, "BVS", Relative, 2, branch(func(c *CPU) bool { return c.V }))

	// Unofficial NOPs with operands
	for _, code := range []uint8{0x80, 0x82, 0x89, 0xC2, 0xE2} {
		def(code, "NOP*", Immediate, 2, (*CPU).nop)
	}
	for _, code := range []uint8{0x04, 0x44, 0x64} {
		def(code, "NOP*", ZeroPage, 3, (*CPU).nop)
	}
	for _, code := range []uint8{0x14, 0x34, 0x54, 0x74, 0xD4, 0xF4} {
		def(code, "NOP*", ZeroPageX, 4, (*CPU).nop)
	}
	def(0x0C, "NOP*", Absolute, 4, (*CPU).nop)
	for _, code := range []uint8{0x1C, 0x3C, 0x5C, 0x7C, 0xDC, 0xFC} {
		defP(code, "NOP*", AbsoluteX, 4, (*CPU).nop)
	}

	// Unofficial combined opcodes
	def(0xA7, "LAX*", ZeroPage, 3, (*CPU).lax)
	def(0xB7, "LAX*", ZeroPageY, 4, (*CPU).lax)
	def(0xAF, "LAX*", Absolute, 4, (*CPU).lax)
	defP(0xBF, "LAX*", AbsoluteY, 4, (*CPU).lax)
	def(0xA3, "LAX*", IndexedIndirect, 6, (*CPU).lax)
	defP(0xB3, "LAX*", IndirectIndexed, 5, (*CPU).lax)
	def(0x87, "SAX*", ZeroPage, 3, (*CPU).sax)
	def(0x97, "SAX*", ZeroPageY, 4, (*CPU).sax)
	def(0x8F, "SAX*", Absolute, 4, (*CPU).sax)
	def(0x83, "SAX*", IndexedIndirect, 6, (*CPU).sax)
	rmw("DCP*", (*CPU).dcp, 0xC7, 0xD7, 0xCF, 0xDF, 0xDB, 0xC3, 0xD3)
	rmw("ISB*", (*CPU).isb, 0xE7, 0xF7, 0xEF, 0xFF, 0xFB, 0xE3, 0xF3)
	rmw("SLO*", (*CPU).slo, 0x07, 0x17, 0x0F, 0x1F, 0x1B, 0x03, 0x13)
	rmw("RLA*", (*CPU).rla, 0x27, 0x37, 0x2F, 0x3F, 0x3B, 0x23, 0x33)
	rmw("SRE*", (*CPU).sre, 0x47, 0x57, 0x4F, 0x5F, 0x5B, 0x43, 0x53)
	rmw("RRA*", (*CPU).rra, 0x67, 0x77, 0x6F, 0x7F, 0x7B, 0x63, 0x73)
}

// branch builds a conditional branch: one extra cycle when taken, two when
// the target is on another page.
func branch(taken func(*CPU) bool) execFunc {
	return func(cpu *CPU, o operand) int {
		if !taken(cpu) {
			return 0
		}
		cpu.PC = o.addr
		if o.crossed {
			return 2
		}
		return 1
	}
}

func (cpu *CPU) lda(o operand) int {
	cpu.A = cpu.memory.Read(o.addr)
	cpu.setZN(cpu.A)
	return 0
}

func (cpu *CPU) ldx(o operand) int {
	cpu.X = cpu.memory.Read(o.addr)
	cpu.setZN(cpu.X)
	return 0
}

func (cpu *CPU) ldy(o operand) int {
	cpu.Y = cpu.memory.Read(o.addr)
	cpu.setZN(cpu.Y)
	return 0
}

func (cpu *CPU) sta(o operand) int { cpu.memory.Write(o.addr, cpu.A); return 0 }
func (cpu *CPU) stx(o operand) int { cpu.memory.Write(o.addr, cpu.X); return 0 }
func (cpu *CPU) sty(o operand) int { cpu.memory.Write(o.addr, cpu.Y); return 0 }

func (cpu *CPU) addWithCarry(value uint8) {
	sum := uint16(cpu.A) + uint16(value)
	if cpu.C {
		sum++
	}
	result := uint8(sum)
	cpu.C = sum > 0xFF
	cpu.V = (cpu.A^result)&(value^result)&0x80 != 0
	cpu.A = result
	cpu.setZN(result)
}

func (cpu *CPU) adc(o operand) int {
	cpu.addWithCarry(cpu.memory.Read(o.addr))
	return 0
}

func (cpu *CPU) sbc(o operand) int {
	cpu.addWithCarry(^cpu.memory.Read(o.addr))
	return 0
}

func (cpu *CPU) and(o operand) int {
	cpu.A &= cpu.memory.Read(o.addr)
	cpu.setZN(cpu.A)
	return 0
}

func (cpu *CPU) ora(o operand) int {
	cpu.A |= cpu.memory.Read(o.addr)
	cpu.setZN(cpu.A)
	return 0
}

func (cpu *CPU) eor(o operand) int {
	cpu.A ^= cpu.memory.Read(o.addr)
	cpu.setZN(cpu.A)
	return 0
}

func (cpu *CPU) compare(register, value uint8) {
	cpu.C = register >= value
	cpu.setZN(register - value)
}

func (cpu *CPU) cmp(o operand) int { cpu.compare(cpu.A, cpu.memory.Read(o.addr)); return 0 }
func (cpu *CPU) cpx(o operand) int { cpu.compare(cpu.X, cpu.memory.Read(o.addr)); return 0 }
func (cpu *CPU) cpy(o operand) int { cpu.compare(cpu.Y, cpu.memory.Read(o.addr)); return 0 }

func (cpu *CPU) bit(o operand) int {
	value := cpu.memory.Read(o.addr)
	cpu.Z = cpu.A&value == 0
	cpu.V = value&vFlagMask != 0
	cpu.N = value&nFlagMask != 0
	return 0
}

// modify applies f to the accumulator or to memory, depending on mode.
func (cpu *CPU) modify(o operand, f func(uint8) uint8) uint8 {
	if o.mode == Accumulator {
		cpu.A = f(cpu.A)
		cpu.setZN(cpu.A)
		return cpu.A
	}
	value := f(cpu.memory.Read(o.addr))
	cpu.memory.Write(o.addr, value)
	cpu.setZN(value)
	return value
}

func (cpu *CPU) asl(o operand) int {
	cpu.modify(o, func(v uint8) uint8 {
		cpu.C = v&0x80 != 0
		return v << 1
	})
	return 0
}

func (cpu *CPU) lsr(o operand) int {
	cpu.modify(o, func(v uint8) uint8 {
		cpu.C = v&0x01 != 0
		return v >> 1
	})
	return 0
}

func (cpu *CPU) rol(o operand) int {
	cpu.modify(o, func(v uint8) uint8 {
		carry := uint8(0)
		if cpu.C {
			carry = 1
		}
		cpu.C = v&0x80 != 0
		return v<<1 | carry
	})
	return 0
}

func (cpu *CPU) ror(o operand) int {
	cpu.modify(o, func(v uint8) uint8 {
		carry := uint8(0)
		if cpu.C {
			carry = 0x80
		}
		cpu.C = v&0x01 != 0
		return v>>1 | carry
	})
	return 0
}

func (cpu *CPU) inc(o operand) int {
	cpu.modify(o, func(v uint8) uint8 { return v + 1 })
	return 0
}

func (cpu *CPU) dec(o operand) int {
	cpu.modify(o, func(v uint8) uint8 { return v - 1 })
	return 0
}

func (cpu *CPU) inx(operand) int { cpu.X++; cpu.setZN(cpu.X); return 0 }
func (cpu *CPU) dex(operand) int { cpu.X--; cpu.setZN(cpu.X); return 0 }
func (cpu *CPU) iny(operand) int { cpu.Y++; cpu.setZN(cpu.Y); return 0 }
func (cpu *CPU) dey(operand) int { cpu.Y--; cpu.setZN(cpu.Y); return 0 }

func (cpu *CPU) tax(operand) int { cpu.X = cpu.A; cpu.setZN(cpu.X); return 0 }
func (cpu *CPU) txa(operand) int { cpu.A = cpu.X; cpu.setZN(cpu.A); return 0 }
func (cpu *CPU) tay(operand) int { cpu.Y = cpu.A; cpu.setZN(cpu.Y); return 0 }
func (cpu *CPU) tya(operand) int { cpu.A = cpu.Y; cpu.setZN(cpu.A); return 0 }
func (cpu *CPU) tsx(operand) int { cpu.X = cpu.SP; cpu.setZN(cpu.X); return 0 }

// txs does not touch the flags.
func (cpu *CPU) txs(operand) int { cpu.SP = cpu.X; return 0 }

func (cpu *CPU) pha(operand) int { cpu.push(cpu.A); return 0 }

func (cpu *CPU) pla(operand) int {
	cpu.A = cpu.pop()
	cpu.setZN(cpu.A)
	return 0
}

func (cpu *CPU) php(operand) int {
	cpu.push(cpu.GetStatusByte() | bFlagMask | unusedMask)
	return 0
}

func (cpu *CPU) plp(operand) int {
	cpu.SetStatusByte(cpu.pop())
	cpu.B = false
	return 0
}

func (cpu *CPU) jmp(o operand) int { cpu.PC = o.addr; return 0 }

func (cpu *CPU) jsr(o operand) int {
	cpu.pushWord(cpu.PC - 1)
	cpu.PC = o.addr
	return 0
}

func (cpu *CPU) rts(operand) int {
	cpu.PC = cpu.popWord() + 1
	return 0
}

func (cpu *CPU) rti(operand) int {
	cpu.SetStatusByte(cpu.pop())
	cpu.B = false
	cpu.PC = cpu.popWord()
	return 0
}

func (cpu *CPU) brk(operand) int {
	// BRK skips a padding byte.
	cpu.PC++
	cpu.interrupt(irqVector, true)
	return 0
}

func (cpu *CPU) nop(operand) int { return 0 }

func (cpu *CPU) lax(o operand) int {
	cpu.A = cpu.memory.Read(o.addr)
	cpu.X = cpu.A
	cpu.setZN(cpu.A)
	return 0
}

func (cpu *CPU) sax(o operand) int {
	cpu.memory.Write(o.addr, cpu.A&cpu.X)
	return 0
}

func (cpu *CPU) dcp(o operand) int {
	value := cpu.memory.Read(o.addr) - 1
	cpu.memory.Write(o.addr, value)
	cpu.compare(cpu.A, value)
	return 0
}

func (cpu *CPU) isb(o operand) int {
	value := cpu.memory.Read(o.addr) + 1
	cpu.memory.Write(o.addr, value)
	cpu.addWithCarry(^value)
	return 0
}

func (cpu *CPU) slo(o operand) int {
	cpu.asl(operand{addr: o.addr, mode: o.mode})
	cpu.A |= cpu.memory.Read(o.addr)
	cpu.setZN(cpu.A)
	return 0
}

func (cpu *CPU) rla(o operand) int {
	cpu.rol(o)
	cpu.A &= cpu.memory.Read(o.addr)
	cpu.setZN(cpu.A)
	return 0
}

func (cpu *CPU) sre(o operand) int {
	cpu.lsr(o)
	cpu.A ^= cpu.memory.Read(o.addr)
	cpu.setZN(cpu.A)
	return 0
}

func (cpu *CPU) rra(o operand) int {
	cpu.ror(o)
	cpu.addWithCarry(cpu.memory.Read(o.addr))
	return 0
}
